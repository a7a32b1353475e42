// Package telegram adapts the Telegram Bot API (go-telegram-bot-api v5) to
// the collector's transport contract: fetch a batch of updates from an
// offset and send a text message, optionally as a reply inside a forum
// thread.
//
// The library predates forum topics, so updates are fetched through
// BotAPI.Request and the raw result is decoded twice: once into
// tgbotapi.Update values and once into a small probe that carries
// message_thread_id. Sends go through MakeRequest for the same reason.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/domain"
)

// Client is the Telegram transport.
type Client struct {
	bot         *tgbotapi.BotAPI
	limiter     *rate.Limiter
	pollTimeout time.Duration
}

// New connects to the Bot API (getMe) using a plain HTTP client whose
// timeout covers one long-poll plus callTimeout.
func New(cfg config.TelegramConfig, callTimeout time.Duration) (*Client, error) {
	hc := &http.Client{Timeout: cfg.PollTimeout + callTimeout}
	return NewWithHTTPClient(cfg, hc)
}

// NewWithHTTPClient is New with a caller-supplied HTTP client.
func NewWithHTTPClient(cfg config.TelegramConfig, hc tgbotapi.HTTPClient) (*Client, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	rps, burst := cfg.SendRPS, cfg.SendBurst
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	log.Info().Int64("bot_id", bot.Self.ID).Str("username", bot.Self.UserName).Msg("telegram connected")
	return &Client{
		bot:         bot,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		pollTimeout: cfg.PollTimeout,
	}, nil
}

// SelfID returns the bot's own user id.
func (c *Client) SelfID() int64 { return c.bot.Self.ID }

// threadProbe picks the fields tgbotapi v5.5.1 does not model.
type threadProbe struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		MessageThreadID int `json:"message_thread_id"`
	} `json:"message"`
}

// FetchUpdates returns pending message updates with update_id >= offset.
func (c *Client) FetchUpdates(ctx context.Context, offset int64) ([]domain.RawUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := tgbotapi.NewUpdate(int(offset))
	u.Timeout = int(c.pollTimeout / time.Second)
	u.AllowedUpdates = []string{"message"}

	resp, err := c.bot.Request(u)
	if err != nil {
		return nil, fmt.Errorf("telegram: getUpdates: %w", err)
	}

	var updates []tgbotapi.Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	var probes []threadProbe
	threads := make(map[int]int)
	if err := json.Unmarshal(resp.Result, &probes); err == nil {
		for _, p := range probes {
			if p.Message != nil && p.Message.MessageThreadID != 0 {
				threads[p.UpdateID] = p.Message.MessageThreadID
			}
		}
	}
	return convertUpdates(updates, threads), nil
}

// SendMessage sends text to chatID. replyTo and threadID are optional (0).
// When the reply target no longer exists the message is sent once more
// without reply_to_message_id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo, threadID int) error {
	err := c.send(ctx, chatID, text, replyTo, threadID)
	if err != nil && replyTo != 0 && IsReplyTargetGone(err) {
		log.Warn().Int64("chat_id", chatID).Int("reply_to", replyTo).Msg("reply target gone; sending without reply")
		err = c.send(ctx, chatID, text, 0, threadID)
	}
	return err
}

func (c *Client) send(ctx context.Context, chatID int64, text string, replyTo, threadID int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	params.AddNonZero("reply_to_message_id", replyTo)
	params.AddNonZero("message_thread_id", threadID)

	if _, err := c.bot.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return nil
}

// RegisterCommands publishes the bot's command list (/start).
func (c *Client) RegisterCommands(startDescription string) error {
	cfg := tgbotapi.NewSetMyCommands(tgbotapi.BotCommand{
		Command:     "start",
		Description: startDescription,
	})
	if _, err := c.bot.Request(cfg); err != nil {
		return fmt.Errorf("telegram: setMyCommands: %w", err)
	}
	return nil
}

// IsReplyTargetGone reports whether err is the Bot API rejection of a reply
// to a deleted or unknown message.
func IsReplyTargetGone(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "message to be replied not found") ||
		strings.Contains(msg, "replied message not found")
}
