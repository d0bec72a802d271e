package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewatch/internal/domain/entity"
)

// capture records the decoded JSON body of every request it serves.
type capture struct {
	bodies []map[string]any
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.bodies = append(c.bodies, body)
		w.WriteHeader(status)
	}
}

func TestGroupMeNotifier_NotifyCode(t *testing.T) {
	var c capture
	server := httptest.NewServer(c.handler(http.StatusAccepted))
	defer server.Close()

	n := NewGroupMeNotifier(GroupMeConfig{
		Enabled:       true,
		BotID:         "bot-123",
		APIURL:        server.URL,
		RedeemBaseURL: "https://shop.example.com/",
		Timeout:       time.Second,
	})

	err := n.NotifyCode(context.Background(), entity.Code("ABCDE12345F"))

	require.NoError(t, err)
	require.Len(t, c.bodies, 1)
	assert.Equal(t, "bot-123", c.bodies[0]["bot_id"])
	assert.Equal(t, "ABCDE12345F | https://shop.example.com/coupon_redeem?code=ABCDE12345F", c.bodies[0]["text"])
}

func TestGroupMeNotifier_NotifyTextTruncates(t *testing.T) {
	var c capture
	server := httptest.NewServer(c.handler(http.StatusAccepted))
	defer server.Close()

	n := NewGroupMeNotifier(GroupMeConfig{BotID: "bot", APIURL: server.URL, Timeout: time.Second})

	err := n.NotifyText(context.Background(), strings.Repeat("x", 1500))

	require.NoError(t, err)
	text, _ := c.bodies[0]["text"].(string)
	assert.Len(t, text, maxGroupMeTextLength)
	assert.True(t, strings.HasSuffix(text, truncationSuffix))
}

func TestGroupMeNotifier_DefaultAPIURL(t *testing.T) {
	n := NewGroupMeNotifier(GroupMeConfig{BotID: "bot"})
	assert.Equal(t, DefaultGroupMeAPIURL, n.webhook.url)
}

func TestGroupMeNotifier_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"meta":{"code":400,"errors":["bot_id is invalid"]}}`))
	}))
	defer server.Close()

	n := NewGroupMeNotifier(GroupMeConfig{BotID: "nope", APIURL: server.URL, Timeout: time.Second})

	err := n.NotifyText(context.Background(), "hello")

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Contains(t, clientErr.Message, "GroupMe API client error")
}

func TestCodeMessage(t *testing.T) {
	assert.Equal(t,
		"XYZ98765432 | https://a.example/coupon_redeem?code=XYZ98765432",
		CodeMessage(entity.Code("XYZ98765432"), "https://a.example"))
}
