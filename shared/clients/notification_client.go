package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NotificationClient posts templated emails to the notification service.
// With an empty base URL every send is a no-op, which is what local
// development without the notification service wants.
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string, timeout time.Duration) *NotificationClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Email request structs
type VerificationEmailRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Link  string `json:"verification_link"`
}

type PasswordResetEmailRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Link      string `json:"reset_link"`
	ExpiresIn string `json:"expires_in"`
}

type PasswordChangedEmailRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	ChangedAt string `json:"changed_at"`
}

// EmailResponse represents email service response
type EmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}

// SendVerificationEmail sends the email verification link
func (nc *NotificationClient) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	return nc.sendEmailRequest(ctx, "/api/notifications/email/verification", VerificationEmailRequest{
		Email: to,
		Name:  name,
		Link:  link,
	})
}

// SendPasswordResetEmail sends the password reset link
func (nc *NotificationClient) SendPasswordResetEmail(ctx context.Context, to, name, link string) error {
	return nc.sendEmailRequest(ctx, "/api/notifications/email/password-reset", PasswordResetEmailRequest{
		Email:     to,
		Name:      name,
		Link:      link,
		ExpiresIn: "30 minutes",
	})
}

func (nc *NotificationClient) SendPasswordChangedEmail(ctx context.Context, to, name string, at time.Time) error {
	return nc.sendEmailRequest(ctx, "/api/notifications/email/password-changed", PasswordChangedEmailRequest{
		Email:     to,
		Name:      name,
		ChangedAt: at.UTC().Format(time.RFC3339),
	})
}

// Generic email sender
func (nc *NotificationClient) sendEmailRequest(ctx context.Context, endpoint string, payload any) error {
	if nc == nil || nc.baseURL == "" {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nc.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := nc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	var emailResp EmailResponse
	if err := json.Unmarshal(body, &emailResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !emailResp.Success {
		return fmt.Errorf("email service error: %s", emailResp.Message)
	}
	return nil
}
