package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError represents an error response from the Telegram Bot API.
type APIError struct {
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error on %s: %s", e.Method, e.Description)
}

// Client is the interface for delivering messages to the chat channel.
//
// Edit and Delete fail permanently once a message exceeds the platform's
// absolute age ceiling (48h for bots); callers must retire messages before
// that point.
type Client interface {
	SendMessage(ctx context.Context, text string) (int64, error)
	EditMessage(ctx context.Context, messageID int64, text string) error
	DeleteMessage(ctx context.Context, messageID int64) error
	PinMessage(ctx context.Context, messageID int64) error
	UnpinMessage(ctx context.Context, messageID int64) error
}

// HTTPClient is the HTTP implementation of Client for the Telegram Bot API.
// All messages are sent with HTML parse mode.
type HTTPClient struct {
	baseURL    string
	chatID     string
	httpClient *http.Client
	// How long to wait for Telegram to emit the pin service notification
	// before sweeping it. Tests set this to zero.
	serviceSweepDelay time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = baseURL
	}
}

// WithServiceSweepDelay overrides the pin-notification sweep delay.
func WithServiceSweepDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.serviceSweepDelay = d
	}
}

// NewClient creates a Telegram Bot API client for one chat.
func NewClient(token, chatID string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: "https://api.telegram.org/bot" + token,
		chatID:  chatID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		serviceSweepDelay: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *HTTPClient) SendMessage(ctx context.Context, text string) (int64, error) {
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, &result)
	if err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

func (c *HTTPClient) EditMessage(ctx context.Context, messageID int64, text string) error {
	err := c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    c.chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
	// Unchanged content is not a failure; the message is still live.
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, messageID int64) error {
	err := c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    c.chatID,
		"message_id": messageID,
	}, nil)
	// Already gone (deleted by hand, or aged past the ceiling) is fine.
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message to delete not found") {
		return nil
	}
	return err
}

func (c *HTTPClient) PinMessage(ctx context.Context, messageID int64) error {
	err := c.call(ctx, "pinChatMessage", map[string]any{
		"chat_id":              c.chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}, nil)
	if err != nil {
		return err
	}
	c.sweepServiceMessages(ctx)
	return nil
}

func (c *HTTPClient) UnpinMessage(ctx context.Context, messageID int64) error {
	return c.call(ctx, "unpinChatMessage", map[string]any{
		"chat_id":    c.chatID,
		"message_id": messageID,
	}, nil)
}

// sweepServiceMessages deletes the "pinned a message" service notifications
// Telegram drops into the chat after a pin. Best-effort: any failure here is
// swallowed, the pin itself already succeeded.
func (c *HTTPClient) sweepServiceMessages(ctx context.Context) {
	if c.serviceSweepDelay > 0 {
		select {
		case <-time.After(c.serviceSweepDelay):
		case <-ctx.Done():
			return
		}
	}

	var updates []struct {
		UpdateID int64 `json:"update_id"`
		Message  struct {
			MessageID int64 `json:"message_id"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			PinnedMessage json.RawMessage `json:"pinned_message"`
		} `json:"message"`
	}
	if err := c.call(ctx, "getUpdates", map[string]any{"timeout": 0}, &updates); err != nil {
		return
	}
	if len(updates) == 0 {
		return
	}

	var maxUpdateID int64
	for _, u := range updates {
		if u.UpdateID > maxUpdateID {
			maxUpdateID = u.UpdateID
		}
		if len(u.Message.PinnedMessage) == 0 {
			continue
		}
		if strconv.FormatInt(u.Message.Chat.ID, 10) != c.chatID {
			continue
		}
		_ = c.DeleteMessage(ctx, u.Message.MessageID)
	}

	// Confirm processed updates so they don't pile up.
	_ = c.call(ctx, "getUpdates", map[string]any{"offset": maxUpdateID + 1, "timeout": 0}, nil)
}

func (c *HTTPClient) call(ctx context.Context, method string, body map[string]any, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed (%s): %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to parse response (%s): %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Description: envelope.Description}
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to parse result (%s): %w", method, err)
		}
	}
	return nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
