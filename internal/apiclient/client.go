// Package apiclient talks to the REST side of the gym backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saeid-a/CoachAppRealtime/internal/metrics"
	"github.com/saeid-a/CoachAppRealtime/internal/models"
	"github.com/tidwall/gjson"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func NewWithHTTPClient(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// ListPeers returns the conversation partners of viewer in server order:
// members for a coach, coaches for a member.
func (c *Client) ListPeers(ctx context.Context, viewer models.Role) ([]models.Peer, error) {
	path, key := "/chat/coaches", "coaches"
	if viewer == models.RoleCoach {
		path, key = "/chat/users", "users"
	}

	body, err := c.do(ctx, "peers", http.MethodGet, path, nil)
	if err != nil {
		return nil, &LoadError{Resource: "peers", Err: err}
	}

	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		for _, candidate := range []string{key, "peers"} {
			if found := list.Get(candidate); found.IsArray() {
				list = found
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, &LoadError{Resource: "peers", Err: fmt.Errorf("unexpected peer list shape")}
	}

	peers := make([]models.Peer, 0)
	if err := json.Unmarshal([]byte(list.Raw), &peers); err != nil {
		return nil, &LoadError{Resource: "peers", Err: fmt.Errorf("decode peers: %w", err)}
	}
	for i := range peers {
		if peers[i].Role == "" {
			peers[i].Role = viewer.Counterpart()
		}
	}
	return peers, nil
}

func (c *Client) History(ctx context.Context, peerID string) ([]models.Message, error) {
	body, err := c.do(ctx, "history", http.MethodGet, "/chat/"+url.PathEscape(peerID), nil)
	if err != nil {
		return nil, &LoadError{Resource: "history", Err: err}
	}

	var response models.HistoryResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &LoadError{Resource: "history", Err: fmt.Errorf("decode history: %w", err)}
	}
	if response.Messages == nil {
		response.Messages = []models.Message{}
	}
	return response.Messages, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.RawNotification, error) {
	body, err := c.do(ctx, "notifications", http.MethodGet, "/notifications", nil)
	if err != nil {
		return nil, &LoadError{Resource: "notifications", Err: err}
	}

	var response models.NotificationsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &LoadError{Resource: "notifications", Err: fmt.Errorf("decode notifications: %w", err)}
	}
	if response.Notifications == nil {
		response.Notifications = []models.RawNotification{}
	}
	return response.Notifications, nil
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if _, err := c.do(ctx, "notification_delete", http.MethodDelete, "/notifications/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := c.do(ctx, "notification_mark_all", http.MethodPost, "/notifications/mark-all-read", struct{}{}); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, payload any) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RESTRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RESTFailures.WithLabelValues(endpoint).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.RESTFailures.WithLabelValues(endpoint).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := gjson.GetBytes(body, "error").String()
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RESTFailures.WithLabelValues(endpoint).Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
