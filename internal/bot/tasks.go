package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasky/internal/model"
	"tasky/internal/store"
)

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "📝 Send the task title.", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty. Send the task title.", cancelKeyboard())
		}
		state.title = text
		state.stage = stageDescription
		b.setConversation(msg.From.ID, state)
		return b.sendWithReplyMarkup(msg.Chat.ID, "Send a description or skip.", skipKeyboard())

	case stageDescription:
		if !isSkipInput(text) {
			state.description = text
		}
		state.stage = stageAssignees
		b.setConversation(msg.From.ID, state)
		users, err := b.svc.Users.ListUsers(ctx, "")
		if err != nil {
			b.clearConversation(msg.From.ID)
			return b.sendError(msg.Chat.ID, err)
		}
		if len(users) == 0 {
			b.clearConversation(msg.From.ID)
			return b.sendText(msg.Chat.ID, "There are no users to assign yet. Add one with /register first.")
		}
		var builder strings.Builder
		builder.WriteString("👥 Send the ids of the assignees, separated by spaces:\n")
		for _, u := range users {
			builder.WriteString(fmt.Sprintf("• <b>%d</b> %s\n", u.ID, escape(u.DisplayName)))
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(builder.String()), cancelKeyboard())

	case stageAssignees:
		ids, err := parseIDs(strings.Fields(strings.ReplaceAll(text, ",", " ")))
		if err != nil || len(ids) == 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Send at least one numeric user id, for example: 3 7", cancelKeyboard())
		}
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.Chat.ID, state, ids)
	}

	return nil
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, state *conversationState, userIDs []uint) error {
	task, err := b.svc.Tasks.CreateTask(ctx, state.title, state.description, userIDs)
	if err != nil {
		return b.sendError(chatID, err)
	}
	log.Printf("[info] task created via bot id=%d", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("✅ Task <b>#%d</b> «%s» created with %d assignee(s).",
		task.ID, escape(normalizeTitle(task.Title)), len(task.Assignments))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	views, err := b.svc.Tasks.ListTasks(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(views) == 0 {
		return b.sendText(chatID, "There are no tasks. Add one with /newtask.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, view := range views {
		builder.WriteString(formatTaskLine(view))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🔎 #%d · %s", view.Task.ID, shortTitle(view.Task.Title, 20)), fmt.Sprintf("%s%d", cbShowTaskPrefix, view.Task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbDeleteTaskPrefix, view.Task.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleShowTask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /task 12")
	}
	return b.sendTaskDetails(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) sendTaskDetails(ctx context.Context, chatID int64, taskID uint) error {
	view, err := b.svc.Tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, formatTaskDetails(*view))
}

// handleAssign replaces the assignees: /assign <task> <status> <user ids…>.
// No ids clears the task.
func (b *Bot) handleAssign(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /assign &lt;task id&gt; &lt;status&gt; &lt;user ids…&gt;\nStatuses: pending, in-progress, completed.")
	}
	taskID, err := parseID(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task id must be a number.")
	}
	status, err := model.ParseStatus(args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Unknown status. Use pending, in-progress or completed.")
	}
	userIDs, err := parseIDs(args[2:])
	if err != nil {
		return b.sendText(msg.Chat.ID, "User ids must be numbers.")
	}

	assignments, err := b.svc.Tasks.ReplaceAssignments(ctx, taskID, userIDs, status)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	if len(assignments) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Task <b>#%d</b> has no assignees now.", taskID))
	}
	if err := b.sendText(msg.Chat.ID, fmt.Sprintf("👥 Task <b>#%d</b> now has %d assignee(s), %s.",
		taskID, len(assignments), statusLabel(status))); err != nil {
		return err
	}
	return b.sendTaskDetails(ctx, msg.Chat.ID, taskID)
}

// handleEditTask: /edittask <id> <title> | <description>.
func (b *Bot) handleEditTask(ctx context.Context, msg *tgbotapi.Message) error {
	idRaw, rest, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	taskID, err := parseID(idRaw)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /edittask &lt;id&gt; &lt;title&gt; | &lt;description&gt;")
	}
	title, description, _ := strings.Cut(rest, "|")
	if err := b.svc.Tasks.UpdateTask(ctx, taskID, strings.TrimSpace(title), strings.TrimSpace(description)); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendTaskDetails(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) handleDeleteTask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /deltask 12")
	}
	return b.askDeleteTaskConfirmation(ctx, msg.Chat.ID, msg.From.ID, taskID)
}

func (b *Bot) askDeleteTaskConfirmation(ctx context.Context, chatID, fromID int64, taskID uint) error {
	view, err := b.svc.Tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendError(chatID, err)
	}

	text := fmt.Sprintf("Delete task «%s» (#%d) and its %d assignment(s)?",
		escape(normalizeTitle(view.Task.Title)), view.Task.ID, len(view.Assignees))
	b.clearConversation(fromID)
	b.setConfirmation(fromID, confirmationRequest{action: actionDeleteTask, id: view.Task.ID})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID uint) error {
	res, err := b.svc.Cascade.DeleteTask(ctx, taskID)
	if err != nil {
		log.Printf("[warn] delete task %d op=%s state=%s", taskID, res.OperationID, res.State())
		return b.sendError(chatID, err)
	}
	if err := b.sendText(chatID, fmt.Sprintf("🗑 Task #%d deleted with %d assignment(s).", taskID, res.ChildrenDeleted)); err != nil {
		return err
	}
	if res.Refresh {
		return b.sendTaskList(ctx, chatID)
	}
	return nil
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDeleteUser {
			return b.deleteUserAndRefresh(ctx, msg.Chat.ID, req)
		}
		return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, req.id)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Deletion cancelled.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ackCallback(cb.ID)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbShowTaskPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbShowTaskPrefix))
		if err != nil {
			return nil
		}
		return b.sendTaskDetails(ctx, chatID, id)
	case strings.HasPrefix(data, cbDeleteTaskPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeleteTaskPrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteTaskConfirmation(ctx, chatID, cb.From.ID, id)
	case strings.HasPrefix(data, cbDeleteUserPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeleteUserPrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteUserConfirmation(ctx, chatID, cb.From.ID, id)
	default:
		return nil
	}
}

func statusLabel(status model.Status) string {
	return statusIcon(status) + " " + status.String()
}
