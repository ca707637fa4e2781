package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/domain"
	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

const (
	DefaultAPIURL      = "https://api.telegram.org"
	DefaultPollTimeout = 30 * time.Second
	DefaultRetryDelay  = 5 * time.Second
	DefaultLockTTL     = 2 * time.Minute

	ReposCommand       = "repos"
	UnsubscribeCommand = "unsubs"

	// LockName guards getUpdates: the Bot API allows one poller per token.
	LockName = "telegram-bot"
)

const (
	welcomeText = "The bot for tracking github stars.\n\n" +
		"See subscribed repos: /" + ReposCommand + "\n" +
		"Subscribe repo: (repourl)\n" +
		"Unsubscribe repo: /" + UnsubscribeCommand

	unsubscribePrompt = "Put a link of the repo for unsubscribing."
	noReposText       = "There are no subscribed repos for you."
	invalidRepoText   = "Send a link like https://github.com/owner/name to subscribe."
	failureText       = "Something went wrong, please try again later."
)

// Replier delivers a text message to a chat.
type Replier interface {
	Send(ctx context.Context, chatID, text string) error
}

// Handle returns the subscriber handle of a Telegram user.
func Handle(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// Bot is the user-facing Telegram surface. It long-polls getUpdates and
// turns messages into subscription calls for the handle tg:<user_id>.
type Bot struct {
	token         string
	apiURL        string
	subscriptions driving.SubscriptionService
	replier       Replier
	lock          driven.DistributedLock
	logger        *slog.Logger
	httpClient    *http.Client

	pollTimeout time.Duration
	retryDelay  time.Duration
	lockTTL     time.Duration

	offset int64

	mu            sync.Mutex
	unsubscribing map[int64]struct{}
}

// Config holds configuration for the bot.
type Config struct {
	Token         string
	APIURL        string // Bot API base URL (default: public API)
	Subscriptions driving.SubscriptionService
	Replier       Replier
	Lock          driven.DistributedLock // Optional: one poller across instances
	Logger        *slog.Logger

	PollTimeout time.Duration // Long-poll wait per getUpdates (default: 30s)
	RetryDelay  time.Duration // Pause after a failed poll (default: 5s)
	LockTTL     time.Duration // TTL of the poller lock (default: 2m)
}

// NewBot creates a Telegram bot.
func NewBot(cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= pollTimeout {
		lockTTL = max(DefaultLockTTL, 2*pollTimeout)
	}

	return &Bot{
		token:         cfg.Token,
		apiURL:        strings.TrimRight(apiURL, "/"),
		subscriptions: cfg.Subscriptions,
		replier:       cfg.Replier,
		lock:          cfg.Lock,
		logger:        logger.With("component", "telegram_bot"),
		httpClient:    &http.Client{Timeout: pollTimeout + 15*time.Second},
		pollTimeout:   pollTimeout,
		retryDelay:    retryDelay,
		lockTTL:       lockTTL,
		unsubscribing: make(map[int64]struct{}),
	}
}

// Run polls for messages until ctx is cancelled. With a lock configured,
// only the instance holding LockName polls; the others stand by.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot starting", "poll_timeout", b.pollTimeout)

	for ctx.Err() == nil {
		held, err := b.acquire(ctx)
		if err != nil {
			b.logger.Warn("failed to acquire bot lock", "error", err)
		}
		if !held {
			b.sleep(ctx, b.lockTTL/2)
			continue
		}

		b.poll(ctx)

		if b.lock != nil {
			if err := b.lock.Release(context.WithoutCancel(ctx), LockName); err != nil {
				b.logger.Warn("failed to release bot lock", "error", err)
			}
		}
	}

	b.logger.Info("telegram bot stopped")
	return nil
}

func (b *Bot) acquire(ctx context.Context) (bool, error) {
	if b.lock == nil {
		return true, nil
	}
	return b.lock.Acquire(ctx, LockName, b.lockTTL)
}

// poll runs the getUpdates loop until ctx is done or the lock is lost.
func (b *Bot) poll(ctx context.Context) {
	if err := b.skipPending(ctx); err != nil && ctx.Err() == nil {
		b.logger.Warn("failed to skip pending updates", "error", err)
	}

	for ctx.Err() == nil {
		updates, err := b.getUpdates(ctx, b.offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to fetch updates", "error", err)
			b.sleep(ctx, b.retryDelay)
		}

		for _, u := range updates {
			b.offset = u.UpdateID + 1
			b.handleUpdate(ctx, u)
		}

		if !b.keepLock(ctx) {
			return
		}
	}
}

// skipPending drops updates sent while no poller was running.
func (b *Bot) skipPending(ctx context.Context) error {
	updates, err := b.getUpdates(ctx, -1, 0)
	if err != nil {
		return err
	}
	if n := len(updates); n > 0 {
		b.offset = updates[n-1].UpdateID + 1
		b.logger.Info("skipped pending updates", "next_offset", b.offset)
	}
	return nil
}

func (b *Bot) keepLock(ctx context.Context) bool {
	if b.lock == nil {
		return true
	}
	err := b.lock.Extend(ctx, LockName, b.lockTTL)
	switch {
	case err == nil:
		return true
	case errors.Is(err, driven.ErrLockNotHeld):
		b.logger.Info("bot lock lost, standing by")
		return false
	default:
		if ctx.Err() == nil {
			b.logger.Warn("failed to extend bot lock", "error", err)
		}
		return true
	}
}

func (b *Bot) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Update is a Bot API update. Only messages are requested.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []Update `json:"result"`
	ErrorCode   int      `json:"error_code,omitempty"`
	Description string   `json:"description,omitempty"`
}

// APIError is a Bot API error reply. 409 means another poller is running.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.StatusCode, e.Description)
}

func (b *Bot) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	q.Set("allowed_updates", `["message"]`)

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", b.apiURL, b.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build request: %w", unwrapURLError(err))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		return nil, fmt.Errorf("telegram: get updates: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	var reply updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !reply.OK {
		return nil, &APIError{StatusCode: resp.StatusCode, Description: reply.Description}
	}
	return reply.Result, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	reply := b.respond(ctx, msg.From.ID, text)
	if err := b.replier.Send(ctx, strconv.FormatInt(msg.Chat.ID, 10), reply); err != nil {
		b.logger.Warn("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// respond returns the reply to one message from userID.
func (b *Bot) respond(ctx context.Context, userID int64, text string) string {
	handle := Handle(userID)

	name, arg, isCommand := parseCommand(text)
	if !isCommand {
		if b.takeUnsubscribing(userID) {
			return b.unsubscribe(ctx, handle, text)
		}
		return b.subscribe(ctx, handle, text)
	}

	b.takeUnsubscribing(userID)
	switch name {
	case ReposCommand:
		return b.listRepos(ctx, handle)
	case UnsubscribeCommand:
		if arg != "" {
			return b.unsubscribe(ctx, handle, arg)
		}
		b.mu.Lock()
		b.unsubscribing[userID] = struct{}{}
		b.mu.Unlock()
		return unsubscribePrompt
	default:
		return welcomeText
	}
}

// parseCommand splits "/name@bot arg" into name and arg.
func parseCommand(text string) (name, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

// takeUnsubscribing clears the pending-unsubscribe state of userID and
// reports whether it was set.
func (b *Bot) takeUnsubscribing(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.unsubscribing[userID]
	delete(b.unsubscribing, userID)
	return ok
}

func (b *Bot) subscribe(ctx context.Context, handle, repoURL string) string {
	res, err := b.subscriptions.Subscribe(ctx, handle, repoURL)
	if err != nil {
		b.logger.Error("subscribe failed", "handle", handle, "error", err)
		return failureText
	}
	switch res {
	case domain.SubscribeAlreadySubscribed:
		return fmt.Sprintf("You are already subscribed to \"%s\" repo.", repoURL)
	case domain.SubscribeInvalidRepo:
		return invalidRepoText
	}
	return "Subscribed successfully."
}

func (b *Bot) unsubscribe(ctx context.Context, handle, repoURL string) string {
	res, err := b.subscriptions.Unsubscribe(ctx, handle, repoURL)
	if err != nil {
		b.logger.Error("unsubscribe failed", "handle", handle, "error", err)
		return failureText
	}
	if res == domain.UnsubscribeNotSubscribed {
		return "You are not subscribed for the repo " + repoURL
	}
	return "Unsubscribed successfully."
}

func (b *Bot) listRepos(ctx context.Context, handle string) string {
	repos, err := b.subscriptions.ListUserRepos(ctx, handle)
	if err != nil {
		b.logger.Error("list repos failed", "handle", handle, "error", err)
		return failureText
	}
	if len(repos) == 0 {
		return noReposText
	}

	lines := []string{"Subscribed repos:", ""}
	for _, repo := range repos {
		lines = append(lines, " - "+repo.URL)
	}
	return strings.Join(lines, "\n")
}
