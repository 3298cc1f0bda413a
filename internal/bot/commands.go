package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-list/internal/export"
	"task-list/internal/model"
	"task-list/internal/repository"
	"task-list/internal/service"
	"task-list/internal/view"
)

const (
	cbTogglePrefix  = "toggle:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancel        = "cancel"
	cbPagePrefix    = "page:"
	cbSortPrefix    = "sort:"
)

type draftStage int

const (
	stageName draftStage = iota + 1
	stageType
	stageCount
)

// draft is an /add dialog in progress.
type draft struct {
	stage draftStage
	input service.CreateInput
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
		if d := b.getDraft(msg.From.ID); d != nil {
			return b.handleDraft(ctx, msg, d)
		}
		return b.sendText(msg.Chat.ID, "I did not understand that. Try /add or /help.")
	}

	b.log.Info(ctx, "command", "user", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return b.sendText(chatID, helpText)
	case "list":
		return b.sendList(ctx, chatID)
	case "add":
		return b.handleAdd(ctx, msg, args)
	case "cancel":
		b.clearDraft(msg.From.ID)
		return b.sendText(chatID, "⏪ Input cancelled.")
	case "complete":
		return b.handleToggle(ctx, chatID, args)
	case "delete":
		return b.handleDelete(ctx, chatID, args)
	case "search":
		b.withState(chatID, func(s *view.State) { s.SetSearch(args) })
		return b.sendList(ctx, chatID)
	case "filter":
		status, err := view.ParseStatus(args)
		if err != nil {
			return b.sendText(chatID, "Usage: /filter all|completed|pending")
		}
		b.withState(chatID, func(s *view.State) { s.SetStatus(status) })
		return b.sendList(ctx, chatID)
	case "sort":
		key, err := view.ParseSortKey(args)
		if err != nil || args == "" {
			return b.sendText(chatID, "Usage: /sort createdAt|name|type|status")
		}
		b.withState(chatID, func(s *view.State) { s.SortBy(key) })
		return b.sendList(ctx, chatID)
	case "page":
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return b.sendText(chatID, "Usage: /page 2")
		}
		b.withState(chatID, func(s *view.State) { s.SetPage(n) })
		return b.sendList(ctx, chatID)
	case "types":
		return b.sendText(chatID, formatTypes(b.types))
	case "export":
		formats := export.Formats
		if args != "" {
			f, err := export.ParseFormat(args)
			if err != nil {
				return b.sendText(chatID, "Usage: /export [xlsx|pdf]")
			}
			formats = []export.Format{f}
		}
		return b.handleExport(ctx, chatID, formats...)
	case "report":
		return b.handleReport(ctx, chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Text)) {
	case strings.ToLower(menuLabelList):
		return true, b.sendList(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelAdd):
		return true, b.handleAdd(ctx, msg, "")
	case strings.ToLower(menuLabelExport):
		return true, b.handleExport(ctx, msg.Chat.ID, export.Formats...)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

// handleAdd creates directly from "name; type; count" or starts a dialog.
func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message, args string) error {
	if args == "" {
		b.setDraft(msg.From.ID, &draft{stage: stageName})
		return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New entry.\n<b>Step 1:</b> name?", cancelKeyboard())
	}

	parts := strings.Split(args, ";")
	if len(parts) != 3 {
		return b.sendText(msg.Chat.ID, "Usage: /add name; type; count")
	}
	count := strings.TrimSpace(parts[2])
	return b.create(ctx, msg.Chat.ID, service.CreateInput{Name: parts[0], Type: parts[1], Count: &count})
}

func (b *Bot) handleDraft(ctx context.Context, msg *tgbotapi.Message, d *draft) error {
	text := strings.TrimSpace(msg.Text)
	if strings.EqualFold(text, btnCancelDialog) {
		b.clearDraft(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	switch d.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Name cannot be empty.", cancelKeyboard())
		}
		d.input.Name = text
		d.stage = stageType
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 <b>Step 2:</b> type?", typeKeyboard(b.types))
	case stageType:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Type cannot be empty.", typeKeyboard(b.types))
		}
		d.input.Type = text
		d.stage = stageCount
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔢 <b>Step 3:</b> count?", cancelKeyboard())
	default:
		d.input.Count = &text
		b.clearDraft(msg.From.ID)
		return b.create(ctx, msg.Chat.ID, d.input)
	}
}

func (b *Bot) create(ctx context.Context, chatID int64, in service.CreateInput) error {
	entry, err := b.entries.Create(ctx, in)
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return b.sendText(chatID, "⚠️ "+escape(ve.Message))
	}
	if err != nil {
		return err
	}
	b.log.Info(ctx, "entry created", "id", entry.ID, "via", "telegram")
	if err := b.sendText(chatID, fmt.Sprintf("✅ Added %s", formatEntryLine(*entry))); err != nil {
		return err
	}
	return b.sendList(ctx, chatID)
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, ref string) error {
	entry, err := b.resolve(ctx, chatID, ref)
	if err != nil || entry == nil {
		return b.replyResolve(chatID, err, "/complete")
	}
	return b.toggleAndRefresh(ctx, chatID, entry.ID)
}

func (b *Bot) toggleAndRefresh(ctx context.Context, chatID int64, id string) error {
	entry, err := b.entries.Toggle(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return b.sendText(chatID, "Entry not found.")
	}
	if err != nil {
		return err
	}
	state := "pending"
	if entry.Completed {
		state = "completed"
	}
	if err := b.sendText(chatID, fmt.Sprintf("%s marked %s.", escape(entry.Name), state)); err != nil {
		return err
	}
	return b.sendList(ctx, chatID)
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, ref string) error {
	entry, err := b.resolve(ctx, chatID, ref)
	if err != nil || entry == nil {
		return b.replyResolve(chatID, err, "/delete")
	}
	return b.askDeleteConfirmation(chatID, *entry)
}

func (b *Bot) askDeleteConfirmation(chatID int64, e model.Entry) error {
	text := fmt.Sprintf("Delete %s?", formatEntryLine(e))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(e.ID))
}

func (b *Bot) deleteAndRefresh(ctx context.Context, chatID int64, id string) error {
	deleted, err := b.entries.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return b.sendText(chatID, "Entry not found or already deleted.")
	}
	b.log.Info(ctx, "entry deleted", "id", id, "via", "telegram")
	if err := b.sendText(chatID, "🗑 Deleted."); err != nil {
		return err
	}
	return b.sendList(ctx, chatID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.ack(ctx, cb, "")

	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		return b.toggleAndRefresh(ctx, chatID, strings.TrimPrefix(data, cbTogglePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		id := strings.TrimPrefix(data, cbDeletePrefix)
		entry, err := b.findByID(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return b.sendText(chatID, "Entry not found.")
		}
		return b.askDeleteConfirmation(chatID, *entry)
	case strings.HasPrefix(data, cbConfirmPrefix):
		return b.deleteAndRefresh(ctx, chatID, strings.TrimPrefix(data, cbConfirmPrefix))
	case data == cbCancel:
		return b.sendText(chatID, "Cancelled.")
	case strings.HasPrefix(data, cbPagePrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(data, cbPagePrefix))
		if err != nil {
			return nil
		}
		b.withState(chatID, func(s *view.State) { s.SetPage(n) })
		return b.sendList(ctx, chatID)
	case strings.HasPrefix(data, cbSortPrefix):
		key, err := view.ParseSortKey(strings.TrimPrefix(data, cbSortPrefix))
		if err != nil {
			return nil
		}
		b.withState(chatID, func(s *view.State) { s.SortBy(key) })
		return b.sendList(ctx, chatID)
	}
	return nil
}

func (b *Bot) sendList(ctx context.Context, chatID int64) error {
	entries, err := b.entries.List(ctx)
	if err != nil {
		return err
	}
	q := b.withState(chatID, func(*view.State) {})
	res := view.Derive(entries, q)
	b.withState(chatID, func(s *view.State) { s.Clamp(res) })

	text, markup := renderList(q, res)
	if markup == nil {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, *markup)
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, formats ...export.Format) error {
	q := b.withState(chatID, func(*view.State) {})
	for _, f := range formats {
		data, err := b.exports.Render(ctx, q, f)
		if errors.Is(err, export.ErrEmpty) {
			return b.sendText(chatID, "Nothing to export.")
		}
		if err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: f.FileName(), Bytes: data})
		if _, err := b.api.Send(doc); err != nil {
			return fmt.Errorf("send %s: %w", f.FileName(), err)
		}
	}
	return nil
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	r, err := b.reports.Summary(ctx, timeNow())
	if err != nil {
		return b.sendText(chatID, "Could not build the report: "+escape(err.Error()))
	}
	return b.sendText(chatID, service.FormatReport(r))
}

// resolve finds an entry by its row number in the chat's current view, its
// id, or a unique id prefix of at least 4 characters.
func (b *Bot) resolve(ctx context.Context, chatID int64, ref string) (*model.Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errNoRef
	}
	entries, err := b.entries.List(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := strconv.Atoi(ref); err == nil {
		q := b.withState(chatID, func(*view.State) {})
		arranged := view.Arrange(entries, q)
		if n < 1 || n > len(arranged) {
			return nil, nil
		}
		return &arranged[n-1], nil
	}

	if len(ref) < 4 {
		return nil, nil
	}
	var match *model.Entry
	for i := range entries {
		if entries[i].ID == ref {
			return &entries[i], nil
		}
		if strings.HasPrefix(entries[i].ID, ref) {
			if match != nil {
				return nil, errAmbiguous
			}
			match = &entries[i]
		}
	}
	return match, nil
}

func (b *Bot) findByID(ctx context.Context, id string) (*model.Entry, error) {
	entries, err := b.entries.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, nil
}

var (
	errNoRef     = errors.New("no entry reference")
	errAmbiguous = errors.New("ambiguous id prefix")
)

func (b *Bot) replyResolve(chatID int64, err error, cmd string) error {
	switch {
	case errors.Is(err, errNoRef):
		return b.sendText(chatID, fmt.Sprintf("Usage: %s &lt;row number or id&gt;", cmd))
	case errors.Is(err, errAmbiguous):
		return b.sendText(chatID, "Several entries match that id, type more of it.")
	case err != nil:
		return err
	default:
		return b.sendText(chatID, "Entry not found.")
	}
}

func (b *Bot) getDraft(userID int64) *draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drafts[userID]
}

func (b *Bot) setDraft(userID int64, d *draft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drafts[userID] = d
}

func (b *Bot) clearDraft(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, userID)
}
