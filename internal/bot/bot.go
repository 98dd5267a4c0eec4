package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alarm-planner/internal/config"
	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
	"alarm-planner/internal/repository"
	"alarm-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageDate
	stageTime
	stageRecurrence
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

const (
	btnSkip          = "⏭️ Skip"
	btnToday         = "Today"
	btnTomorrow      = "Tomorrow"
	btnCancelDialog  = "⏪ Cancel"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelNext    = "⏰ Upcoming"
	menuLabelHelp    = "ℹ️ Help"
)

const listLimit = 50

var ErrNoOwnerChat = errors.New("bot: no owner chat to deliver to")

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// Bot is the Telegram front end. It also implements service.AlarmSink.
type Bot struct {
	api         *tgbotapi.BotAPI
	ownerRepo   *repository.OwnerRepository
	taskSvc     *service.TaskService
	agendaSvc   *service.AgendaService
	maintSvc    *service.MaintenanceService
	config      *config.Config
	log         logx.Logger
	now         func() time.Time
	ownerChatID int64

	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, ownerRepo *repository.OwnerRepository, taskSvc *service.TaskService, agendaSvc *service.AgendaService, maintSvc *service.MaintenanceService, cfg *config.Config, log logx.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.With(logx.String("component", "bot"))
	log.Info("bot authorized", logx.String("account", api.Self.UserName))

	return &Bot{
		api:           api,
		ownerRepo:     ownerRepo,
		taskSvc:       taskSvc,
		agendaSvc:     agendaSvc,
		maintSvc:      maintSvc,
		config:        cfg,
		log:           log,
		now:           time.Now,
		ownerChatID:   cfg.OwnerChatID,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", logx.Err(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", logx.Err(err))
			}
		}
	}

	return ctx.Err()
}

// Deliver sends an alarm to the owner chat.
func (b *Bot) Deliver(ctx context.Context, ev service.AlarmEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := b.ownerChat(ctx)
	if err != nil {
		return err
	}

	var text strings.Builder
	text.WriteString("🔔 <b>Reminder</b>\n")
	text.WriteString(fmt.Sprintf("<b>%s</b>", escape(normalizeTitle(ev.Title))))
	if d := strings.TrimSpace(ev.Description); d != "" {
		text.WriteString("\n\n")
		text.WriteString(escape(d))
	}
	text.WriteString(fmt.Sprintf("\n\n⏰ %s", ev.DueKey))

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ Done #%d", ev.TaskID), fmt.Sprintf("%s%d", cbCompletePrefix, ev.TaskID)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send alarm: %w", err)
	}
	return nil
}

// SendDigest sends the upcoming-task summary to the owner.
func (b *Bot) SendDigest(ctx context.Context) error {
	chatID, err := b.ownerChat(ctx)
	if err != nil {
		return err
	}
	text, err := b.agendaSvc.Summary(ctx, b.now(), service.DefaultAgendaSize)
	if err != nil {
		return fmt.Errorf("build digest: %w", err)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) ownerChat(ctx context.Context) (int64, error) {
	b.mu.Lock()
	id := b.ownerChatID
	b.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	owner, err := b.ownerRepo.Get(ctx)
	if errors.Is(err, repository.ErrNoOwner) {
		return 0, ErrNoOwnerChat
	}
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.ownerChatID = owner.ChatID
	b.mu.Unlock()
	return owner.ChatID, nil
}

// authorize binds the first user as owner and rejects everyone else.
func (b *Bot) authorize(ctx context.Context, from *tgbotapi.User, chatID int64) (bool, error) {
	if b.config != nil && b.config.OwnerChatID != 0 && chatID != b.config.OwnerChatID {
		return false, nil
	}
	_, err := b.ownerRepo.Bind(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
	if errors.Is(err, repository.ErrNotOwner) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	b.ownerChatID = chatID
	b.mu.Unlock()
	return true, nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	ok, err := b.authorize(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Warn("message from foreign chat ignored", logx.Int64("chat", msg.Chat.ID))
		return b.sendText(msg.Chat.ID, "This planner belongs to someone else.")
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task creation cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Debug("command", logx.Int64("from", msg.From.ID), logx.String("command", msg.Command()))
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "done":
		return b.handleSetCompleted(ctx, msg, true)
	case "undo":
		return b.handleSetCompleted(ctx, msg, false)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "backup":
		return b.handleBackup(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task creation cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I will ring when your tasks are due.</b>\n\n"+
			"Reminders arrive in this chat. Send /help for the command list.",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	rules := make([]string, 0, len(model.Recurrences))
	for _, r := range b.taskSvc.Recurrences() {
		rules = append(rules, string(r))
	}
	text := "ℹ️ <b>Commands</b>\n" +
		"• /newtask: add a task step by step\n" +
		"• /tasks: all tasks\n" +
		"• /upcoming: the next few due tasks\n" +
		"• /done &lt;id&gt;: mark a task as addressed\n" +
		"• /undo &lt;id&gt;: reopen a task\n" +
		"• /edit &lt;id&gt; &lt;title|description|date|time|recurrence&gt; &lt;value&gt;\n" +
		"• /delete &lt;id&gt;: remove a task\n" +
		"• /backup: snapshot all tasks\n" +
		"• /cancel: abort the current input\n\n" +
		fmt.Sprintf("Recurrence: %s.", strings.Join(rules, ", "))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.agendaSvc.Summary(ctx, b.now(), service.DefaultAgendaSize)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the list: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.log.Debug("start new task conversation", logx.Int64("from", msg.From.ID))
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
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
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Due date as <code>2025-11-30</code>.", dateKeyboard())
	case stageDate:
		date, err := b.parseDateInput(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2025-11-30</code>.", dateKeyboard())
		}
		state.input.DueDate = date
		state.stage = stageTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Time as <code>HH:MM</code>, 24h.", cancelKeyboard())
	case stageTime:
		if _, _, err := model.NormalizeDue(state.input.DueDate, text); err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that time. Use <code>09:30</code>.", cancelKeyboard())
		}
		state.input.DueTime = text
		state.stage = stageRecurrence
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Repeat?", recurrenceKeyboard(b.taskSvc.Recurrences()))
	case stageRecurrence:
		if isSkipInput(text) {
			text = string(model.RecurrenceNone)
		}
		state.input.Recurrence = text
		err := b.finishTaskCreation(ctx, state.input, msg.Chat.ID)
		if errors.Is(err, service.ErrInvalidTask) {
			return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Could not save: %s", escape(err.Error())), recurrenceKeyboard(b.taskSvc.Recurrences()))
		}
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /newtask.")
	}
}

func (b *Bot) parseDateInput(text string) (string, error) {
	loc := time.Local
	if b.config != nil && b.config.Location != nil {
		loc = b.config.Location
	}
	today := b.now().In(loc)
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(btnToday):
		return today.Format(model.DateLayout), nil
	case strings.ToLower(btnTomorrow):
		return today.AddDate(0, 0, 1).Format(model.DateLayout), nil
	}
	parsed, err := time.Parse(model.DateLayout, strings.TrimSpace(text))
	if err != nil {
		return "", err
	}
	return parsed.Format(model.DateLayout), nil
}

func (b *Bot) finishTaskCreation(ctx context.Context, input service.TaskInput, chatID int64) error {
	task, err := b.taskSvc.CreateTask(ctx, input)
	if err != nil {
		return err
	}

	b.log.Info("task created", logx.Uint("task", task.ID), logx.String("due", task.DueKey()), logx.String("recurrence", string(task.Recurrence)))

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueKey()))
	if task.Recurrence.Repeats() {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", task.Recurrence))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	tasks, err := b.taskSvc.ListTasks(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "No tasks yet. Add one with /newtask.")
	}
	if len(tasks) > listLimit {
		tasks = tasks[len(tasks)-listLimit:]
	}

	loc := time.Local
	if b.config != nil && b.config.Location != nil {
		loc = b.config.Location
	}
	now := b.now().In(loc)

	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(service.FormatTask(task, now, loc))
		if task.Completed {
			continue
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleSetCompleted(ctx context.Context, msg *tgbotapi.Message, done bool) error {
	id, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give the task id: /%s 12", msg.Command()))
	}
	return b.setCompletedAndReply(ctx, msg.Chat.ID, id, done)
}

func (b *Bot) setCompletedAndReply(ctx context.Context, chatID int64, id uint, done bool) error {
	task, err := b.taskSvc.SetCompleted(ctx, id, done)
	if err != nil {
		return b.replyError(chatID, err)
	}
	b.log.Info("task completion changed", logx.Uint("task", task.ID), logx.Bool("completed", done))
	if done {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» marked as done.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» reopened.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	parts := strings.SplitN(strings.TrimSpace(msg.CommandArguments()), " ", 3)
	if len(parts) < 3 {
		return b.sendText(msg.Chat.ID, "Usage: /edit 12 time 18:30")
	}
	id, err := parseIDArg(parts[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task id must be a number.")
	}
	task, err := b.taskSvc.EditTask(ctx, id, parts[1], parts[2])
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	b.log.Info("task edited", logx.Uint("task", task.ID), logx.String("field", parts[1]))
	return b.sendText(msg.Chat.ID, "✏️ Updated.\n\n"+service.FormatTask(*task, b.now(), b.location()))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the task id: /delete 12")
	}
	return b.askDeleteConfirmation(ctx, msg.Chat.ID, id)
}

func (b *Bot) handleBackup(ctx context.Context, msg *tgbotapi.Message) error {
	n, err := b.maintSvc.Backup(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Backup failed: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("💾 %d tasks backed up.", n))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack", logx.Err(err))
	}

	ok, err := b.authorize(ctx, cb.From, cb.Message.Chat.ID)
	if err != nil || !ok {
		return err
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		id, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.setCompletedAndReply(ctx, chatID, id, true)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, id)
	case strings.HasPrefix(data, cbConfirmPrefix):
		id, err := parseTaskID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		return b.deleteTaskAndReply(ctx, chatID, id)
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "Nothing deleted.")
	default:
		return nil
	}
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, id uint) error {
	task, err := b.taskSvc.GetTask(ctx, id)
	if err != nil {
		return b.replyError(chatID, err)
	}
	text := fmt.Sprintf("Delete «%s» (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbConfirmPrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", fmt.Sprintf("%s%d", cbCancelPrefix, task.ID)),
		),
	)
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) deleteTaskAndReply(ctx context.Context, chatID int64, id uint) error {
	task, err := b.taskSvc.GetTask(ctx, id)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if err := b.taskSvc.DeleteTask(ctx, id); err != nil {
		return b.replyError(chatID, err)
	}
	b.log.Info("task deleted", logx.Uint("task", id))
	return b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) replyError(chatID int64, err error) error {
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		return b.sendText(chatID, "Task not found.")
	case errors.Is(err, service.ErrInvalidTask):
		return b.sendText(chatID, escape(err.Error()))
	default:
		b.log.Error("request failed", logx.Err(err))
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelNext):
		return true, b.handleUpcoming(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) location() *time.Location {
	if b.config != nil && b.config.Location != nil {
		return b.config.Location
	}
	return time.Local
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
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

func parseTaskID(data, prefix string) (uint, error) {
	return parseIDArg(strings.TrimPrefix(data, prefix))
}

func parseIDArg(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
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

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNext),
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

func dateKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnToday),
			tgbotapi.NewKeyboardButton(btnTomorrow),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func recurrenceKeyboard(rules []model.Recurrence) tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(rules))
	for _, r := range rules {
		row = append(row, tgbotapi.NewKeyboardButton(string(r)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(row...),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func escape(s string) string {
	return html.EscapeString(s)
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
