// Package callback delivers the finished analysis to the response URL
// captured from the inbound command. The chat platform accepts a JSON
// message body; delivery failures are terminal because the caller has no
// other channel left.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// message is the chat-platform response shape posted to the response URL.
type message struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// Client posts formatted result messages to callback URLs.
type Client struct {
	httpClient *http.Client
}

// New creates a Client. A nil httpClient gets a short-timeout default; the
// callback endpoint is expected to answer fast.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Deliver posts the text to the callback URL as an in-channel message.
// There is no retry; the caller logs the error and moves on.
func (c *Client) Deliver(ctx context.Context, url, text string) error {
	if url == "" {
		return errors.New("callback: url must not be empty")
	}

	body, err := json.Marshal(message{ResponseType: "in_channel", Text: text})
	if err != nil {
		return fmt.Errorf("callback: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: post to %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("callback: unexpected status %d from %s: %s", res.StatusCode, url, string(buf))
	}
	return nil
}
