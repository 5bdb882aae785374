package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasky/internal/model"
	"tasky/internal/service"
)

const (
	cbShowTaskPrefix   = "task:"
	cbDeleteTaskPrefix = "deltask:"
	cbDeleteUserPrefix = "deluser:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	btnCancelDialog  = "⏪ Stop input"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelUsers   = "👥 Users"
	menuLabelHelp    = "ℹ️ Help"
)

func statusIcon(status model.Status) string {
	switch status {
	case model.StatusCompleted:
		return "✅"
	case model.StatusPending:
		return "⏳"
	case model.StatusInProgress:
		return "🔄"
	default:
		return "❔"
	}
}

func formatTaskLine(view service.TaskView) string {
	status := view.Status()
	names := make([]string, 0, len(view.Assignees))
	for _, a := range view.Assignees {
		names = append(names, assigneeName(a))
	}
	assignees := "nobody"
	if len(names) > 0 {
		assignees = strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s <b>#%d</b> %s\n   %s · 👥 %s\n\n",
		statusIcon(status), view.Task.ID, escape(normalizeTitle(view.Task.Title)), status, escape(assignees))
}

func formatTaskDetails(view service.TaskView) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>#%d %s</b>\n", view.Task.ID, escape(normalizeTitle(view.Task.Title))))
	if d := strings.TrimSpace(string(view.Task.Description)); d != "" {
		b.WriteString(fmt.Sprintf("📝 %s\n", escape(d)))
	}
	if !view.Task.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("🗓 Created %s\n", view.Task.CreatedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString(fmt.Sprintf("Status: %s %s\n", statusIcon(view.Status()), view.Status()))
	if len(view.Assignees) == 0 {
		b.WriteString("\nNo assignees.")
		return b.String()
	}
	b.WriteString("\n<b>Assignees</b>\n")
	for _, a := range view.Assignees {
		b.WriteString(fmt.Sprintf("%s %s · %s\n", statusIcon(a.Assignment.Status), escape(assigneeName(a)), a.Assignment.Status))
	}
	return strings.TrimSpace(b.String())
}

func assigneeName(a service.TaskAssignee) string {
	if a.User == nil {
		return fmt.Sprintf("missing user #%d", a.Assignment.UserID)
	}
	return a.User.DisplayName
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(value), nil
}

func parseIDs(fields []string) ([]uint, error) {
	ids := make([]uint, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(f)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitNameAndRole treats a trailing number as the role id when a name
// precedes it.
func splitNameAndRole(fields []string) (string, *uint) {
	if len(fields) > 1 {
		if id, err := parseID(fields[len(fields)-1]); err == nil {
			return strings.Join(fields[:len(fields)-1], " "), &id
		}
	}
	return strings.Join(fields, " "), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelUsers),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
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

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
