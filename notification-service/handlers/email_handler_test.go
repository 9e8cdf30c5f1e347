package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvloc02/EventVer1-sub001/notification-service/services"
	"github.com/tvloc02/EventVer1-sub001/shared/clients"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

type captureSender struct {
	sent []services.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg services.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newRouter(sender services.Sender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, NewEmailHandler(services.NewEmailService(sender, logging.Nop())))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNotificationClientRoundTrip(t *testing.T) {
	sender := &captureSender{}
	srv := httptest.NewServer(newRouter(sender))
	defer srv.Close()

	client := clients.NewNotificationClient(srv.URL, time.Second)
	ctx := context.Background()

	require.NoError(t, client.SendVerificationEmail(ctx, "lan.tran@uni.edu", "Lan", "https://eventhub.test/verify-email?token=v1"))
	require.NoError(t, client.SendPasswordResetEmail(ctx, "lan.tran@uni.edu", "Lan", "https://eventhub.test/reset-password?token=r1"))
	require.NoError(t, client.SendPasswordChangedEmail(ctx, "lan.tran@uni.edu", "Lan", time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)))

	require.Len(t, sender.sent, 3)
	assert.Contains(t, sender.sent[0].HTML, "verify-email?token=v1")
	assert.Contains(t, sender.sent[1].HTML, "reset-password?token=r1")
	assert.Contains(t, sender.sent[1].HTML, "30 minutes")
	assert.Contains(t, sender.sent[2].HTML, "2026-05-04T09:00:00Z")
}

func TestRejectsBadRequests(t *testing.T) {
	r := newRouter(&captureSender{})

	w := post(r, "/api/notifications/email/verification", `{"email":"not-an-email","verification_link":"https://x.test"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/notifications/email/password-reset", `{"email":"a@uni.edu"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/notifications/email/password-changed", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveryFailureIsBadGateway(t *testing.T) {
	sender := &captureSender{err: errors.New("relay down")}
	srv := httptest.NewServer(newRouter(sender))
	defer srv.Close()

	w := post(srv.Config.Handler, "/api/notifications/email/password-changed",
		`{"email":"a@uni.edu","name":"A","changed_at":"2026-05-04T09:00:00Z"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	err := clients.NewNotificationClient(srv.URL, time.Second).
		SendVerificationEmail(context.Background(), "a@uni.edu", "A", "https://eventhub.test/verify-email?token=v")
	assert.Error(t, err)
}
