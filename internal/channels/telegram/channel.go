// Package telegram implements the long-polled chat-bot transport
// adapter named in spec §2: it derives a channel key from the chat,
// calls the Channel Manager's Send, and registers an outbound push
// handler. It has no special standing over any other adapter.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/channels"
	"github.com/nextlevelbuilder/goclaw/internal/push"
	"github.com/nextlevelbuilder/goclaw/internal/sessions"
)

// telegramMaxMessageRunes is Telegram's per-message text limit.
const telegramMaxMessageRunes = 4096

// Config configures the Telegram long-poll adapter.
type Config struct {
	BotToken      string
	ChannelTag    string // channel-key prefix, e.g. "tg-"
	MediaMaxBytes int64
}

// Channel is the Telegram transport adapter.
type Channel struct {
	cfg      Config
	bot      *telego.Bot
	manager  *sessions.Manager
	registry *push.Registry
	logger   *slog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a Channel and registers its push handler.
func New(cfg Config, manager *sessions.Manager, registry *push.Registry, logger *slog.Logger) (*Channel, error) {
	if cfg.ChannelTag == "" {
		cfg.ChannelTag = "tg-"
	}
	if cfg.MediaMaxBytes == 0 {
		cfg.MediaMaxBytes = defaultMediaMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}

	c := &Channel{
		cfg:      cfg,
		bot:      bot,
		manager:  manager,
		registry: registry,
		logger:   logger.With("adapter", "telegram"),
	}
	registry.Register(cfg.ChannelTag, c.deliverPush)
	return c, nil
}

// Name implements channels.Adapter.
func (c *Channel) Name() string { return "telegram" }

// IsRunning implements channels.Adapter.
func (c *Channel) IsRunning() bool { return c.running.Load() }

// Start begins long-polling for updates. Each message is dispatched
// to its own goroutine; the Channel Manager serializes per channel.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	updates, err := c.bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: start long polling: %w", err)
	}

	c.running.Store(true)
	go func() {
		defer c.running.Store(false)
		for update := range updates {
			if update.Message == nil {
				continue
			}
			go c.handleMessage(runCtx, update.Message)
		}
	}()
	return nil
}

// Stop implements channels.Adapter.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Channel) channelKey(chatID int64) string {
	return c.cfg.ChannelTag + strconv.FormatInt(chatID, 10)
}

func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	chatID := msg.Chat.ID
	key := c.channelKey(chatID)

	content, err := c.buildContent(ctx, msg)
	if err != nil {
		c.logger.Warn("telegram: failed to build content", "chat_id", chatID, "error", err)
		return
	}
	if content == nil {
		return
	}

	chanCtx := &bus.ChannelContext{
		Channel: key,
		Adapter: "telegram",
	}
	if msg.From != nil {
		chanCtx.UserName = msg.From.Username
	}
	if msg.Chat.Title != "" {
		chanCtx.ChatTitle = msg.Chat.Title
	}

	res, err := c.manager.Send(ctx, key, content, chanCtx, nil)
	if err != nil {
		c.logger.Warn("telegram: dispatch failed", "chat_id", chatID, "error", err)
		return
	}
	// A coalesced reply belongs to the combined turn; the real result
	// goes to whichever caller's onEvent/return owns the last message
	// in the batch (spec §4.1 Coalescing). Suppress the duplicate here.
	if res.Coalesced || res.Text == "" {
		return
	}
	if res.IsError {
		// Agent-ended completions are noise, not a user-intelligible
		// answer (spec §7 AgentEnded); the session resumes on its own.
		return
	}

	text := channels.Truncate(res.Text, telegramMaxMessageRunes)
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		c.logger.Warn("telegram: reply send failed", "chat_id", chatID, "error", err)
	}
}

// deliverPush is the push handler registered with the Push Registry
// for this adapter's channel-tag prefix.
func (c *Channel) deliverPush(channel, text string, media *bus.MediaAttachment) error {
	idPart := strings.TrimPrefix(channel, c.cfg.ChannelTag)
	chatID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid channel %q: %w", channel, err)
	}
	_, err = c.bot.SendMessage(context.Background(), tu.Message(tu.ID(chatID), channels.Truncate(text, telegramMaxMessageRunes)))
	return err
}
