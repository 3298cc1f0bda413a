package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-list/internal/model"
	"task-list/internal/view"
)

const (
	btnCancelDialog = "⏪ Cancel input"
	menuLabelList   = "📋 List"
	menuLabelAdd    = "➕ Add"
	menuLabelExport = "📤 Export"
	menuLabelHelp   = "ℹ️ Help"
	iconPending     = "🟢"
	iconDone        = "✅"
	shortIDLen      = 8
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /list — current page of the list\n" +
	"• /add name; type; count — add an entry (or /add for a dialog)\n" +
	"• /complete &lt;n|id&gt; — toggle completion\n" +
	"• /delete &lt;n|id&gt; — delete an entry\n" +
	"• /search text — filter by name or type (empty clears)\n" +
	"• /filter all|completed|pending\n" +
	"• /sort createdAt|name|type|status — repeat to flip direction\n" +
	"• /page n — jump to a page\n" +
	"• /types — configured types\n" +
	"• /export [xlsx|pdf] — XLSX and PDF of the filtered list\n" +
	"• /report — summary\n" +
	"• /cancel — abort the current dialog"

var timeNow = time.Now

func escape(s string) string {
	return html.EscapeString(s)
}

// renderList builds the list message and its inline keyboard. The keyboard
// is nil when there is nothing to act on.
func renderList(q view.Query, r view.Result) (string, *tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Task list</b> · %s · sort %s %s\n", q.Status, q.SortBy, q.SortDir))
	if q.Search != "" {
		b.WriteString(fmt.Sprintf("🔎 %s\n", escape(q.Search)))
	}
	b.WriteString(fmt.Sprintf("Page %d/%d · %d matched · total count <b>%d</b>\n\n", r.Page, r.TotalPages, r.Matched, r.TotalCount))

	if len(r.Items) == 0 {
		b.WriteString("No entries. Add one with /add.")
		return strings.TrimSpace(b.String()), nil
	}

	offset := (r.Page - 1) * r.PageSize
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, e := range r.Items {
		n := offset + i + 1
		b.WriteString(fmt.Sprintf("%d. %s\n", n, formatEntryLine(e)))

		toggle := fmt.Sprintf("%s #%d", iconDone, n)
		if e.Completed {
			toggle = fmt.Sprintf("↩️ #%d", n)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, cbTogglePrefix+e.ID),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d", n), cbDeletePrefix+e.ID),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if r.Page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️", fmt.Sprintf("%s%d", cbPagePrefix, r.Page-1)))
	}
	if r.Page < r.TotalPages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("▶️", fmt.Sprintf("%s%d", cbPagePrefix, r.Page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.TrimSpace(b.String()), &markup
}

func formatEntryLine(e model.Entry) string {
	icon := iconPending
	if e.Completed {
		icon = iconDone
	}
	return fmt.Sprintf("%s <b>%s</b> <i>(%s)</i> × %d · <code>%s</code>",
		icon, escape(e.Name), escape(e.Type), e.Count, shortID(e.ID))
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func formatTypes(types []string) string {
	if len(types) == 0 {
		return "No types configured, any type is accepted."
	}
	var b strings.Builder
	b.WriteString("🏷 <b>Types</b>\n")
	for _, t := range types {
		b.WriteString(fmt.Sprintf("• %s\n", escape(t)))
	}
	return strings.TrimSpace(b.String())
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelList),
			tgbotapi.NewKeyboardButton(menuLabelAdd),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelExport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// typeKeyboard offers the configured types two per row.
func typeKeyboard(types []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(types); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(types[i]))
		if i+1 < len(types) {
			row = append(row, tgbotapi.NewKeyboardButton(types[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbConfirmPrefix+id),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancel),
		),
	)
}
