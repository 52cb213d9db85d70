package bot

import (
	"context"
	"errors"
	"fmt"

	"freopen_bot/internal/model"
	"freopen_bot/internal/telegram"
)

func (b *Bot) handleSubscribe(ctx context.Context, msg *model.Message, args string) error {
	action, url, err := ParseSubscribeArgs(args)
	if errors.Is(err, errSubscribeUsage) {
		return b.reply(ctx, msg, subscribeUsage)
	}
	if err != nil {
		return b.reply(ctx, msg, err.Error())
	}

	switch action {
	case actionAdd:
		feed, err := b.fetcher.Fetch(ctx, url)
		if err != nil {
			return b.reply(ctx, msg, fmt.Sprintf("Failed to fetch feed: %v", err))
		}
		if err := b.store.AddSubscription(ctx, msg.ChatID, url); err != nil {
			return b.failed(ctx, msg, fmt.Errorf("add subscription: %w", err))
		}
		title := feed.Title
		if title == "" {
			title = url
		}
		b.log.Info("subscribed", "chat_id", msg.ChatID, "url", url)
		return b.reply(ctx, msg, fmt.Sprintf("OK, subscribed to %s", title))

	case actionList:
		subs, err := b.store.ListSubscriptions(ctx, msg.ChatID)
		if err != nil {
			return b.failed(ctx, msg, fmt.Errorf("list subscriptions: %w", err))
		}
		return b.reply(ctx, msg, FormatSubscriptionList(subs))

	default:
		removed, err := b.store.RemoveSubscription(ctx, msg.ChatID, url)
		if err != nil {
			return b.failed(ctx, msg, fmt.Errorf("remove subscription: %w", err))
		}
		if !removed {
			return b.reply(ctx, msg, fmt.Sprintf("Not subscribed to %s", url))
		}
		b.log.Info("unsubscribed", "chat_id", msg.ChatID, "url", url)
		return b.reply(ctx, msg, "OK")
	}
}

// failed tells the chat something went wrong and returns err for the
// dispatcher to log.
func (b *Bot) failed(ctx context.Context, msg *model.Message, err error) error {
	if rerr := b.reply(ctx, msg, "Something went wrong, please try again later."); rerr != nil {
		b.log.Warn("reply failure notice", "chat_id", msg.ChatID, "error", rerr)
	}
	return err
}

func (b *Bot) handlePhoto(ctx context.Context, u model.Update, mirror bool) error {
	msg := u.Message
	ref, ok := model.ResolvePhotoSource(u)
	if !ok {
		if mirror {
			return b.reply(ctx, msg, "Reply to a photo with /mirror.")
		}
		b.log.Debug("photo not found", "update_id", u.ID, "chat_id", msg.ChatID)
		return nil
	}

	if err := b.remote.SendChatAction(ctx, msg.ChatID, telegram.ChatActionUploadPhoto); err != nil {
		b.log.Warn("send chat action", "chat_id", msg.ChatID, "error", err)
	}

	data, err := b.remote.DownloadFile(ctx, ref.FileID)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}
	out, err := b.overlay.Apply(b.template, data, mirror)
	if err != nil {
		return fmt.Errorf("overlay photo: %w", err)
	}
	if err := b.remote.SendPhoto(ctx, msg.ChatID, out, msg.ID); err != nil {
		return fmt.Errorf("reply photo: %w", err)
	}

	b.log.Info("photo decorated", "chat_id", msg.ChatID, "message_id", msg.ID, "mirror", mirror)
	return nil
}
