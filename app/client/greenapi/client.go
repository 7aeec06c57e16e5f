package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salesbot/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
)

const maxErrorBody = 512

type Client struct {
	baseURL    string
	idInstance string
	token      string

	httpClient  *http.Client
	pollTimeout time.Duration
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWithConfig(cfg.GreenAPI), nil
}

func NewWithConfig(cfg config.GreenAPI) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		idInstance: cfg.IDInstance,
		token:      cfg.APITokenInstance,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pollTimeout: cfg.PollTimeout,
	}
}

// BotIdentity is the chat identity of the instance's own number.
func (c *Client) BotIdentity() string {
	return c.idInstance + "@c.us"
}

func (c *Client) IDInstance() string {
	return c.idInstance
}

// PollTimeout is the long-poll timeout used by ReceiveNotification callers.
func (c *Client) PollTimeout() time.Duration {
	return c.pollTimeout
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	var resp sendMessageResponse

	err := c.do(ctx, http.MethodPost, c.methodURL("sendMessage"), sendMessageRequest{
		ChatID:  chatID,
		Message: text,
	}, &resp)
	if err != nil {
		return "", oops.In("greenapi").With("chat_id", chatID).Wrapf(err, "sendMessage")
	}

	return resp.IDMessage, nil
}

// ReceiveNotification long-polls for the next notification. It returns nil
// when the queue stays empty for timeout.
func (c *Client) ReceiveNotification(ctx context.Context, timeout time.Duration) (*Notification, error) {
	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+c.httpClient.Timeout)
	defer cancel()

	url := c.methodURL("receiveNotification") + "?receiveTimeout=" + strconv.Itoa(seconds)

	var notification *Notification
	if err := c.doWith(ctx, &http.Client{Transport: c.httpClient.Transport}, http.MethodGet, url, nil, &notification); err != nil {
		return nil, oops.In("greenapi").Wrapf(err, "receiveNotification")
	}

	return notification, nil
}

func (c *Client) DeleteNotification(ctx context.Context, receiptID int64) error {
	var resp deleteNotificationResponse

	url := c.methodURL("deleteNotification") + "/" + strconv.FormatInt(receiptID, 10)
	if err := c.do(ctx, http.MethodDelete, url, nil, &resp); err != nil {
		return oops.In("greenapi").With("receipt_id", receiptID).Wrapf(err, "deleteNotification")
	}

	if !resp.Result {
		slog.Debug("deleteNotification returned false", "receipt_id", receiptID)
	}

	return nil
}

func (c *Client) LastIncomingMessages(ctx context.Context, minutes int) ([]JournalMessage, error) {
	url := c.methodURL("lastIncomingMessages") + "?minutes=" + strconv.Itoa(minutes)

	var messages []JournalMessage
	if err := c.do(ctx, http.MethodGet, url, nil, &messages); err != nil {
		return nil, oops.In("greenapi").Wrapf(err, "lastIncomingMessages")
	}

	return messages, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, c.idInstance, method, c.token)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	return c.doWith(ctx, c.httpClient, method, url, body, out)
}

func (c *Client) doWith(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err = json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
