package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasky/internal/service"
	"tasky/internal/store"
)

func (b *Bot) handleUsers(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendUserList(ctx, msg.Chat.ID, msg.CommandArguments())
}

func (b *Bot) sendUserList(ctx context.Context, chatID int64, search string) error {
	users, err := b.svc.Users.ListUsers(ctx, search)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(users) == 0 {
		if strings.TrimSpace(search) != "" {
			return b.sendText(chatID, "No user matches that search.")
		}
		return b.sendText(chatID, "There are no users. Add one with /register.")
	}
	roles, err := b.svc.Users.ListRoles(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}

	var builder strings.Builder
	builder.WriteString("👥 <b>Users</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, u := range users {
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s · %s\n", u.ID, escape(u.DisplayName), escape(service.RoleLabel(roles, u.RoleID))))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d · %s", u.ID, shortTitle(u.DisplayName, 20)), fmt.Sprintf("%s%d", cbDeleteUserPrefix, u.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleRoles(ctx context.Context, msg *tgbotapi.Message) error {
	roles, err := b.svc.Users.ListRoles(ctx)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	if len(roles) == 0 {
		return b.sendText(msg.Chat.ID, "No roles are defined.")
	}
	var builder strings.Builder
	builder.WriteString("🏷️ <b>Roles</b>\n")
	for _, r := range roles {
		builder.WriteString(fmt.Sprintf("• <b>%d</b> %s\n", r.ID, escape(r.Name)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

// handleRegister: /register <name> [role id].
func (b *Bot) handleRegister(ctx context.Context, msg *tgbotapi.Message) error {
	name, roleID := splitNameAndRole(strings.Fields(msg.CommandArguments()))
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /register &lt;name&gt; [role id]")
	}
	user, err := b.svc.Users.Register(ctx, name, roleID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ User <b>#%d</b> %s registered.", user.ID, escape(user.DisplayName)))
}

// handleEditUser: /edituser <id> <name> [role id].
func (b *Bot) handleEditUser(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /edituser &lt;id&gt; &lt;name&gt; [role id]")
	}
	userID, err := parseID(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The user id must be a number.")
	}
	name, roleID := splitNameAndRole(args[1:])
	if roleID == nil {
		// No role given: keep the current one.
		current, err := b.svc.Users.GetUser(ctx, userID)
		if err != nil {
			return b.sendError(msg.Chat.ID, err)
		}
		roleID = current.RoleID
	}
	if err := b.svc.Users.UpdateUser(ctx, userID, name, roleID); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ User <b>#%d</b> updated.", userID))
}

func (b *Bot) handleDeleteUser(ctx context.Context, msg *tgbotapi.Message) error {
	userID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the user id: /deluser 4")
	}
	return b.askDeleteUserConfirmation(ctx, msg.Chat.ID, msg.From.ID, userID)
}

func (b *Bot) askDeleteUserConfirmation(ctx context.Context, chatID, fromID int64, userID uint) error {
	user, err := b.svc.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return b.sendText(chatID, "User not found.")
		}
		return b.sendError(chatID, err)
	}
	rel, err := b.svc.Cascade.CheckRelations(ctx, userID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	text := fmt.Sprintf("Delete user %s (#%d)?", escape(user.DisplayName), user.ID)
	if rel.Count > 0 {
		text = fmt.Sprintf("User %s (#%d) is assigned to %d task(s). Deleting the user also removes these assignments. Continue?",
			escape(user.DisplayName), user.ID, rel.Count)
	}
	b.clearConversation(fromID)
	b.setConfirmation(fromID, confirmationRequest{action: actionDeleteUser, id: user.ID, relations: rel.Count})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) deleteUserAndRefresh(ctx context.Context, chatID int64, req confirmationRequest) error {
	res, err := b.svc.Cascade.DeleteUser(ctx, req.id, service.ConfirmCount(req.relations))
	if err != nil {
		if errors.Is(err, service.ErrNotConfirmed) {
			return b.sendText(chatID, "The user's assignments changed since you confirmed. Run /deluser again.")
		}
		log.Printf("[warn] delete user %d op=%s state=%s", req.id, res.OperationID, res.State())
		return b.sendError(chatID, err)
	}
	if err := b.sendText(chatID, fmt.Sprintf("🗑 User #%d deleted with %d assignment(s).", req.id, res.ChildrenDeleted)); err != nil {
		return err
	}
	if res.Refresh {
		return b.sendUserList(ctx, chatID, "")
	}
	return nil
}
