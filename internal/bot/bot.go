// Package bot is a Telegram front end for the entry list, limited to the
// configured admin chats.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-list/internal/export"
	"task-list/internal/logging"
	"task-list/internal/model"
	"task-list/internal/service"
	"task-list/internal/view"
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Entries is the entry use-case surface the bot drives.
type Entries interface {
	List(ctx context.Context) ([]model.Entry, error)
	Create(ctx context.Context, in service.CreateInput) (*model.Entry, error)
	Toggle(ctx context.Context, id string) (*model.Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Exports interface {
	Render(ctx context.Context, q view.Query, f export.Format) ([]byte, error)
}

type Reports interface {
	Summary(ctx context.Context, now time.Time) (service.Report, error)
}

// Deps wires the bot to the services.
type Deps struct {
	Entries  Entries
	Exports  Exports
	Reports  Reports
	Types    []string
	AdminIDs []int64
	PageSize int
	Log      logging.Logger
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      telegramAPI
	entries  Entries
	exports  Exports
	reports  Reports
	types    []string
	admins   map[int64]struct{}
	adminIDs []int64
	pageSize int
	log      logging.Logger

	mu     sync.Mutex
	views  map[int64]*view.State
	drafts map[int64]*draft
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	deps.Log.Info(context.Background(), "bot authorized", "account", api.Self.UserName)
	return newBot(api, deps), nil
}

func newBot(api telegramAPI, deps Deps) *Bot {
	admins := make(map[int64]struct{}, len(deps.AdminIDs))
	for _, id := range deps.AdminIDs {
		admins[id] = struct{}{}
	}
	return &Bot{
		api:      api,
		entries:  deps.Entries,
		exports:  deps.Exports,
		reports:  deps.Reports,
		types:    deps.Types,
		admins:   admins,
		adminIDs: deps.AdminIDs,
		pageSize: deps.PageSize,
		log:      deps.Log,
		views:    make(map[int64]*view.State),
		drafts:   make(map[int64]*draft),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if len(b.admins) == 0 {
		b.log.Warn(ctx, "no TELEGRAM_ADMIN_IDS configured, every chat will be refused")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info(ctx, "start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			b.log.Error(ctx, "handle update", "update", update.UpdateID, "err", err)
		}
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil || !b.allowed(cb.From.ID) {
			return nil
		}
		return b.handleCallback(ctx, cb)
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || !msg.Chat.IsPrivate() || msg.From == nil {
			return nil
		}
		if !b.allowed(msg.From.ID) {
			b.log.Warn(ctx, "refused chat", "user", msg.From.ID)
			return b.sendPlain(msg.Chat.ID, "⛔ This bot is private.")
		}
		return b.handleMessage(ctx, msg)
	}
	return nil
}

func (b *Bot) allowed(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

// Broadcast sends text to every admin chat.
func (b *Bot) Broadcast(ctx context.Context, text string) error {
	var errs []error
	for _, id := range b.adminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.sendText(id, text); err != nil {
			errs = append(errs, fmt.Errorf("send to %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// SendReports delivers the current summary to every admin chat.
func (b *Bot) SendReports(ctx context.Context) error {
	r, err := b.reports.Summary(ctx, timeNow())
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	return b.Broadcast(ctx, service.FormatReport(r))
}

func (b *Bot) state(chatID int64) *view.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.views[chatID]
	if !ok {
		st = view.NewState(b.pageSize)
		b.views[chatID] = st
	}
	return st
}

// withState runs fn under the bot lock on the chat's view state.
func (b *Bot) withState(chatID int64, fn func(*view.State)) view.Query {
	st := b.state(chatID)
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(st)
	return st.Query()
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendPlain(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(ctx context.Context, cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn(ctx, "callback ack", "err", err)
	}
}
