// Package transport talks to the dashboard server: the per-conversation
// message feed and the outlier dismiss endpoint.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"dashsync/internal/logging"
	"dashsync/internal/models"
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// Client issues requests against one dashboard server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

// NewClient parses baseURL and builds a client. A zero timeout leaves the
// transport default in place.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger),
	}, nil
}

// FetchMessages returns the messages of the conversation at conversationPath
// with id greater than lastID, in the order the server sent them.
func (c *Client) FetchMessages(ctx context.Context, conversationPath string, lastID int64) ([]models.Message, error) {
	endpoint := c.resolve(strings.TrimRight(conversationPath, "/") + "/messages")
	q := endpoint.Query()
	q.Set("last_id", strconv.FormatInt(lastID, 10))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var messages []models.Message
	if err := c.do(req, &messages); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return messages, nil
}

// DismissOutlier asks the server to permanently dismiss outlierID and
// reports the server's success flag.
func (c *Client) DismissOutlier(ctx context.Context, outlierID string) (bool, error) {
	if outlierID == "" {
		return false, errors.New("outlier id required")
	}
	endpoint := c.resolve("/outliers/" + url.PathEscape(outlierID) + "/dismiss")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("build dismiss request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var result models.DismissResult
	if err := c.do(req, &result); err != nil {
		return false, fmt.Errorf("dismiss outlier %s: %w", outlierID, err)
	}
	return result.Success, nil
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.baseURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	u.RawPath = ""
	return &u
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: %s %s -> %d", ErrStatus, req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	c.logger.Debug("request done",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode))
	return nil
}

// ConversationFetcher binds a client to one conversation path.
type ConversationFetcher struct {
	Client *Client
	Path   string
}

func (f ConversationFetcher) FetchSince(ctx context.Context, lastID int64) ([]models.Message, error) {
	return f.Client.FetchMessages(ctx, f.Path, lastID)
}
