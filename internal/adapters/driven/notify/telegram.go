package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Channel = (*Telegram)(nil)

// DefaultTelegramAPIURL is the public Bot API endpoint.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramScheme is the handle prefix for Telegram chat IDs ("tg:123456").
const TelegramScheme = "tg"

// Telegram sends messages through the Bot API sendMessage method.
type Telegram struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

// NewTelegram creates a Telegram channel. An empty apiURL uses the public API.
func NewTelegram(token, apiURL string) *Telegram {
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	return &Telegram{
		token:      token,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Telegram) Scheme() string {
	return TelegramScheme
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// TelegramError is a Bot API error reply.
type TelegramError struct {
	StatusCode  int
	Description string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.StatusCode, e.Description)
}

// Send posts text to chatID. Client errors other than 429 are permanent
// (blocked bot, unknown chat) and are not retried.
func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return retry.Unrecoverable(err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		return fmt.Errorf("telegram: send message: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	var reply botResponse
	_ = json.NewDecoder(resp.Body).Decode(&reply)
	if resp.StatusCode == http.StatusOK && reply.OK {
		return nil
	}

	tgErr := &TelegramError{StatusCode: resp.StatusCode, Description: reply.Description}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Unrecoverable(tgErr)
	}
	return tgErr
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
