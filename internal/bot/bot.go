package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"

	"freopen_bot/internal/model"
)

// Remote is the subset of the bot platform the handlers use.
type Remote interface {
	Deliver(ctx context.Context, chatID int64, text string, replyTo int64) error
	SendPhoto(ctx context.Context, chatID int64, jpeg []byte, replyTo int64) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Store is the subset of storage the /subscribe command needs.
type Store interface {
	AddSubscription(ctx context.Context, chatID int64, url string) error
	RemoveSubscription(ctx context.Context, chatID int64, url string) (bool, error)
	ListSubscriptions(ctx context.Context, chatID int64) ([]model.Subscription, error)
}

// FeedFetcher downloads and parses a feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// Overlay stamps a named template over an image.
type Overlay interface {
	Apply(template string, img []byte, mirror bool) ([]byte, error)
}

// Bot handles one inbound update at a time. It holds no per-update state,
// so Handle may be called concurrently.
type Bot struct {
	remote   Remote
	store    Store
	fetcher  FeedFetcher
	overlay  Overlay
	template string
	username string
	log      *slog.Logger
}

// New creates a Bot that stamps photos with the given overlay template.
// username is the bot's own @username; commands addressed to any other bot
// are ignored. An empty username accepts every command.
func New(remote Remote, store Store, fetcher FeedFetcher, overlay Overlay, template, username string, log *slog.Logger) *Bot {
	return &Bot{
		remote:   remote,
		store:    store,
		fetcher:  fetcher,
		overlay:  overlay,
		template: template,
		username: username,
		log:      log,
	}
}

// Handle processes a single update. The returned error is reported by the
// dispatcher; replies already sent are not rolled back.
func (b *Bot) Handle(ctx context.Context, u model.Update) error {
	if u.Message == nil {
		return nil
	}
	msg := u.Message

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	if cmd, target, args, ok := ParseCommand(text); ok {
		if target != "" && b.username != "" && !strings.EqualFold(target, b.username) {
			b.log.Debug("command for another bot", "cmd", cmd, "target", target, "chat_id", msg.ChatID)
			return nil
		}
		b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", msg.ChatID)

		switch cmd {
		case "start", "help":
			return b.reply(ctx, msg, helpText)
		case "subscribe":
			return b.handleSubscribe(ctx, msg, args)
		case "mirror":
			return b.handlePhoto(ctx, u, true)
		}
	}
	return b.handlePhoto(ctx, u, false)
}

func (b *Bot) reply(ctx context.Context, msg *model.Message, text string) error {
	if err := b.remote.Deliver(ctx, msg.ChatID, text, 0); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
