// Package telegram implements the bot platform calls the pollers and handlers
// need on top of the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"freopen_bot/internal/model"
)

// Update types accepted by getUpdates.
const (
	UpdateMessage     = "message"
	UpdateChannelPost = "channel_post"
)

// ChatActionUploadPhoto is shown while a reply photo is being prepared.
const ChatActionUploadPhoto = tgbotapi.ChatUploadPhoto

const (
	clientTimeout  = 90 * time.Second
	connectTimeout = 10 * time.Second
	maxFileSize    = 20 * 1024 * 1024
)

type botAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchRequest describes one getUpdates call.
type FetchRequest struct {
	Offset         int64
	Limit          int
	Timeout        time.Duration
	AllowedUpdates []string
}

// Channel issues calls to the Telegram Bot API. It is safe for concurrent use.
type Channel struct {
	api      botAPI
	http     HTTPClient
	username string
}

// New creates a Channel for the given bot token. It contacts the API once to
// validate the token.
func New(token string, log *slog.Logger) (*Channel, error) {
	client := &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
			MaxIdleConnsPerHost: 16,
		},
	}

	if err := tgbotapi.SetLogger(botLogger{log: log}); err != nil {
		return nil, fmt.Errorf("set bot api logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized", "bot", api.Self.UserName)

	return &Channel{api: api, http: client, username: api.Self.UserName}, nil
}

// Username returns the bot's @username without the leading "@".
func (c *Channel) Username() string {
	return c.username
}

// FetchUpdates calls getUpdates. With a zero Timeout the call returns
// immediately, which acknowledges every update below Offset.
func (c *Channel) FetchUpdates(ctx context.Context, req FetchRequest) ([]model.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := c.api.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         int(req.Offset),
		Limit:          req.Limit,
		Timeout:        int(req.Timeout / time.Second),
		AllowedUpdates: req.AllowedUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	updates := make([]model.Update, 0, len(raw))
	for _, u := range raw {
		updates = append(updates, convertUpdate(u))
	}
	return updates, nil
}

// Deliver sends a text message, as a reply when replyTo is non-zero.
func (c *Channel) Deliver(ctx context.Context, chatID int64, text string, replyTo int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = int(replyTo)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto uploads a JPEG image, as a reply when replyTo is non-zero.
func (c *Channel) SendPhoto(ctx context.Context, chatID int64, jpeg []byte, replyTo int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.jpg", Bytes: jpeg})
	photo.ReplyToMessageID = int(replyTo)
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendChatAction shows a status such as "uploading photo" in the chat.
func (c *Channel) SendChatAction(ctx context.Context, chatID int64, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}

// DownloadFile fetches the contents of a file previously sent to the bot.
func (c *Channel) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}

func convertUpdate(u tgbotapi.Update) model.Update {
	switch {
	case u.Message != nil:
		return model.Update{ID: int64(u.UpdateID), Kind: model.KindMessage, Message: convertMessage(u.Message)}
	case u.ChannelPost != nil:
		return model.Update{ID: int64(u.UpdateID), Kind: model.KindChannelPost, Message: convertMessage(u.ChannelPost)}
	default:
		return model.Update{ID: int64(u.UpdateID), Kind: model.KindOther}
	}
}

func convertMessage(m *tgbotapi.Message) *model.Message {
	if m == nil {
		return nil
	}
	out := &model.Message{
		ID:      int64(m.MessageID),
		Text:    m.Text,
		Caption: m.Caption,
		ReplyTo: convertMessage(m.ReplyToMessage),
	}
	if m.Chat != nil {
		out.ChatID = m.Chat.ID
	}
	for _, p := range m.Photo {
		out.Photo = append(out.Photo, model.PhotoSize{FileID: p.FileID, Width: p.Width, Height: p.Height})
	}
	return out
}

// botLogger routes the Bot API library's log output to slog.
type botLogger struct {
	log *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.log.Debug(fmt.Sprint(v...), "component", "tgbotapi")
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "tgbotapi")
}
