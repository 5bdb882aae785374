package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tasky/internal/config"
	"tasky/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageAssignees
)

type conversationState struct {
	stage       conversationStage
	title       string
	description string
}

type confirmationAction int

const (
	actionDeleteTask confirmationAction = iota
	actionDeleteUser
)

type confirmationRequest struct {
	action confirmationAction
	id     uint
	// relations is the assignment count shown to the operator before a user
	// deletion.
	relations int
}

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Services are the operations the bot exposes.
type Services struct {
	Tasks   *service.TaskService
	Users   *service.UserService
	Cascade *service.CascadeService
	Audit   *service.AuditService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           telegramAPI
	svc           Services
	config        config.Config
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(cfg config.Config, svc Services) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, cfg, svc), nil
}

func newBot(api telegramAPI, cfg config.Config, svc Services) *Bot {
	return &Bot{
		api:           api,
		svc:           svc,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil || !b.config.ChatAllowed(cb.Message.Chat.ID) {
			return
		}
		if err := b.handleCallback(ctx, cb); err != nil {
			log.Printf("[warn] handle callback: %v", err)
		}
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return
		}
		if !b.config.ChatAllowed(msg.Chat.ID) {
			log.Printf("[info] ignoring chat %d", msg.Chat.ID)
			return
		}
		if err := b.handleMessage(ctx, msg); err != nil {
			log.Printf("[warn] handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "task":
		return b.handleShowTask(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "assign":
		return b.handleAssign(ctx, msg)
	case "edittask":
		return b.handleEditTask(ctx, msg)
	case "deltask":
		return b.handleDeleteTask(ctx, msg)
	case "users":
		return b.handleUsers(ctx, msg)
	case "roles":
		return b.handleRoles(ctx, msg)
	case "register":
		return b.handleRegister(ctx, msg)
	case "edituser":
		return b.handleEditUser(ctx, msg)
	case "deluser":
		return b.handleDeleteUser(ctx, msg)
	case "audit":
		return b.handleAudit(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unsupported command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I manage tasks, their assignees and the team roster.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+helpText)
}

const helpText = "• /tasks — list tasks\n" +
	"• /task &lt;id&gt; — task details\n" +
	"• /newtask — create a task step by step\n" +
	"• /assign &lt;task&gt; &lt;status&gt; &lt;user ids…&gt; — replace the assignees\n" +
	"• /edittask &lt;id&gt; &lt;title&gt; | &lt;description&gt; — edit a task\n" +
	"• /deltask &lt;id&gt; — delete a task with its assignments\n" +
	"• /users [search] — list users\n" +
	"• /roles — list roles\n" +
	"• /register &lt;name&gt; [role id] — add a user\n" +
	"• /edituser &lt;id&gt; &lt;name&gt; [role id] — edit a user\n" +
	"• /deluser &lt;id&gt; — delete a user\n" +
	"• /audit — check for inconsistent records\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleAudit(ctx context.Context, msg *tgbotapi.Message) error {
	report, err := b.svc.Audit.Scan(ctx, time.Now())
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "<pre>"+escape(b.svc.Audit.Summary(report))+"</pre>")
}

// SendAuditReport runs the audit and sends findings to the admin chat. A
// clean report is only logged.
func (b *Bot) SendAuditReport(ctx context.Context) error {
	report, err := b.svc.Audit.Scan(ctx, time.Now())
	if err != nil {
		return err
	}
	if report.Clean() {
		log.Printf("[info] audit clean: %d task(s), %d user(s)", report.Tasks, report.Users)
		return nil
	}
	if b.config.AdminChatID == 0 {
		log.Printf("[warn] audit found %d unassigned task(s) and %d dangling assignment(s), no admin chat configured",
			len(report.Unassigned), len(report.Dangling))
		return nil
	}
	return b.sendText(b.config.AdminChatID, "<pre>"+escape(b.svc.Audit.Summary(report))+"</pre>")
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendError(chatID int64, err error) error {
	return b.sendText(chatID, "⚠️ "+escape(service.UserMessage(err)))
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ackCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		log.Printf("[warn] callback ack: %v", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelUsers):
		return true, b.sendUserList(ctx, msg.Chat.ID, "")
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}
