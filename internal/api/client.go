package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"givebridge/internal/domain"
	"givebridge/internal/httpdto"
	givebridge_errors "givebridge/pkg/errors"
)

// Client is the REST boundary the sync engine talks to. The production
// portal and the bundled dev server both satisfy the same wire contract.
type Client interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, counterpartID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, receiverID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	ListNotifications(ctx context.Context) ([]domain.Notification, int, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// HTTPClient implements Client over the portal's JSON envelope protocol.
type HTTPClient struct {
	baseURL   string
	token     string
	endpoints Endpoints
	http      *http.Client
}

func NewHTTPClient(baseURL, token string, endpoints Endpoints, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	return do[[]domain.Conversation](ctx, c, http.MethodGet, c.endpoints.Conversations(), nil)
}

func (c *HTTPClient) ListMessages(ctx context.Context, counterpartID string) ([]domain.Message, error) {
	return do[[]domain.Message](ctx, c, http.MethodGet, c.endpoints.Messages(counterpartID), nil)
}

func (c *HTTPClient) SendMessage(ctx context.Context, receiverID, content string) (domain.Message, error) {
	req := httpdto.SendMessageRequest{ReceiverID: receiverID, Content: content}
	return do[domain.Message](ctx, c, http.MethodPost, c.endpoints.Send(), req)
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, c.endpoints.Message(id), nil)
	return err
}

func (c *HTTPClient) ListNotifications(ctx context.Context) ([]domain.Notification, int, error) {
	resp, err := do[httpdto.NotificationsResponse](ctx, c, http.MethodGet, c.endpoints.Notifications(), nil)
	if err != nil {
		return nil, 0, err
	}
	return resp.Notifications, resp.UnreadCount, nil
}

func (c *HTTPClient) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodPost, c.endpoints.NotificationRead(id), nil)
	return err
}

// Login authenticates against the portal and returns the issued token plus
// the caller's identity snapshot. It lives outside the Client interface:
// the engine is constructed with a token, it never authenticates itself.
func Login(ctx context.Context, baseURL, email, password string, timeout time.Duration) (httpdto.LoginResponse, error) {
	c := NewHTTPClient(baseURL, "", nil, timeout)
	req := httpdto.LoginRequest{Email: email, Password: password}
	return do[httpdto.LoginResponse](ctx, c, http.MethodPost, "/auth/login", req)
}

func do[T any](ctx context.Context, c *HTTPClient, method, path string, body interface{}) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope httpdto.Response[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		if envelope.Error != "" {
			return zero, fmt.Errorf("%s: %w", envelope.Error, requestError(resp.StatusCode))
		}
		return zero, requestError(resp.StatusCode)
	}
	return envelope.Data, nil
}

func requestError(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return givebridge_errors.ErrUnauthorized
	case http.StatusForbidden:
		return givebridge_errors.ErrForbidden
	case http.StatusNotFound:
		return givebridge_errors.ErrNotFound
	case http.StatusBadRequest:
		return givebridge_errors.ErrInvalidInput
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
