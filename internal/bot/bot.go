// Package bot is the thin Telegram surface over the planner core. It
// renders and relays; every decision lives in the services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eisenplan/internal/identity"
	"eisenplan/internal/model"
	"eisenplan/internal/repository"
	"eisenplan/internal/service"
)

const helpText = `Commands:
/add <text> — capture a task
/classify — run AI classification on today's drafts
/finalize — commit the classified tasks into today's plan
/today — show today's plan
/carryover all|none — resolve yesterday's leftovers
/backlog — show deferred tasks
/done <n> — complete task n from the last /today listing
/view list|matrix — set the default layout`

// Bot aggregates the Telegram API with the planner services.
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *repository.UserRepository
	resolver *identity.Resolver
	planSvc  *service.PlanService
	taskSvc  *service.TaskService
	alertSvc *service.AlertService

	mu     sync.Mutex
	listed map[int64][]string // chat → task ids from the last /today listing
}

func New(token string, users *repository.UserRepository, resolver *identity.Resolver, planSvc *service.PlanService, taskSvc *service.TaskService, alertSvc *service.AlertService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:      api,
		users:    users,
		resolver: resolver,
		planSvc:  planSvc,
		taskSvc:  taskSvc,
		alertSvc: alertSvc,
		listed:   make(map[int64][]string),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	if from == nil {
		return
	}

	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	// Resolution is cached, so a burst of messages costs one query.
	userID, err := b.resolver.EnsureTelegramUser(ctx, from.ID, name)
	if err != nil {
		log.Printf("[error] resolve user: %v", err)
		b.reply(msg.Chat.ID, "Something went wrong, try again.")
		return
	}

	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch command {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "add":
		b.handleAdd(ctx, msg.Chat.ID, userID, args)
	case "classify":
		b.handleClassify(ctx, msg.Chat.ID, userID)
	case "finalize":
		b.handleFinalize(ctx, msg.Chat.ID, userID)
	case "today":
		b.handleToday(ctx, msg.Chat.ID, userID)
	case "carryover":
		b.handleCarryOver(ctx, msg.Chat.ID, userID, args)
	case "backlog":
		b.handleBacklog(ctx, msg.Chat.ID, userID)
	case "done":
		b.handleDone(ctx, msg.Chat.ID, userID, args)
	case "view":
		b.handleView(ctx, msg.Chat.ID, userID, args)
	default:
		// Bare text is treated as task capture, matching /add.
		if msg.Text != "" && !strings.HasPrefix(msg.Text, "/") {
			b.handleAdd(ctx, msg.Chat.ID, userID, msg.Text)
		}
	}
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, userID, text string) {
	task, err := b.taskSvc.AddTask(ctx, userID, text)
	if err != nil {
		if errors.Is(err, service.ErrEmptyTaskText) {
			b.reply(chatID, "Usage: /add <task text>")
			return
		}
		log.Printf("[error] add task: %v", err)
		b.reply(chatID, "Could not save the task.")
		return
	}
	b.reply(chatID, fmt.Sprintf("📝 Captured: %s", html.EscapeString(task.RawText)))
}

func (b *Bot) handleClassify(ctx context.Context, chatID int64, userID string) {
	err := b.taskSvc.ClassifyDrafts(ctx, userID)
	switch {
	case errors.Is(err, service.ErrNoDraftTasks):
		b.reply(chatID, "Nothing to classify — add tasks first.")
	case err != nil:
		log.Printf("[error] classify: %v", err)
		b.reply(chatID, "Classification failed; your drafts are untouched. Try again.")
	default:
		b.reply(chatID, "✅ Classified. Review with /today, then /finalize.")
	}
}

func (b *Bot) handleFinalize(ctx context.Context, chatID int64, userID string) {
	err := b.planSvc.Finalize(ctx, userID)
	switch {
	case errors.Is(err, service.ErrNoClassifiedTasks):
		b.reply(chatID, "Nothing to finalize — run /classify first.")
	case err != nil:
		log.Printf("[error] finalize: %v", err)
		b.reply(chatID, "Finalize failed, try again.")
	default:
		b.reply(chatID, "📌 Today's plan is set.")
	}
}

func (b *Bot) handleToday(ctx context.Context, chatID int64, userID string) {
	pending, err := b.planSvc.PreviewCarryOver(ctx, userID)
	if err != nil {
		log.Printf("[error] carry-over preview: %v", err)
		b.reply(chatID, "Could not load today's plan.")
		return
	}
	if len(pending) > 0 {
		var sb strings.Builder
		sb.WriteString("⏮ Leftovers from yesterday:\n")
		for _, task := range pending {
			sb.WriteString(fmt.Sprintf("• [%s] %s\n", task.ResolvedQuadrant(), html.EscapeString(task.RawText)))
		}
		sb.WriteString("\nUse /carryover all to keep them today, /carryover none to let the matrix decide.")
		b.reply(chatID, sb.String())
		return
	}

	view, err := b.planSvc.Today(ctx, userID)
	if err != nil {
		log.Printf("[error] today view: %v", err)
		b.reply(chatID, "Could not load today's plan.")
		return
	}

	if view.Plan == nil || len(view.Active)+len(view.Completed) == 0 {
		b.reply(chatID, "No plan yet. /add tasks, /classify, then /finalize.")
		return
	}

	layout, err := b.taskSvc.DefaultView(ctx, userID)
	if err != nil {
		log.Printf("[error] load view preference: %v", err)
		layout = "list"
	}

	var sb strings.Builder
	ids := make([]string, 0, len(view.Active))
	sb.WriteString("📋 <b>Today</b>\n")
	if layout == "matrix" {
		for _, quadrant := range []model.Quadrant{model.QuadrantQ1, model.QuadrantQ2, model.QuadrantQ3, model.QuadrantQ4} {
			var lines []string
			for _, entry := range view.Active {
				if entry.ResolvedQuadrant() == quadrant {
					ids = append(ids, entry.ID)
					lines = append(lines, fmt.Sprintf("%d. %s", len(ids), html.EscapeString(entry.RawText)))
				}
			}
			if len(lines) > 0 {
				sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n%s\n", quadrant, strings.Join(lines, "\n")))
			}
		}
	} else {
		for i, entry := range view.Active {
			ids = append(ids, entry.ID)
			sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, entry.ResolvedQuadrant(), html.EscapeString(entry.RawText)))
		}
	}
	if len(view.Completed) > 0 {
		sb.WriteString(fmt.Sprintf("\n✅ %d done\n", len(view.Completed)))
	}
	sb.WriteString("\n/done <n> to complete a task")

	b.mu.Lock()
	b.listed[chatID] = ids
	b.mu.Unlock()

	b.reply(chatID, sb.String())
}

func (b *Bot) handleCarryOver(ctx context.Context, chatID int64, userID, args string) {
	var selected []string
	switch args {
	case "all":
		pending, err := b.planSvc.PreviewCarryOver(ctx, userID)
		if err != nil {
			log.Printf("[error] carry-over preview: %v", err)
			b.reply(chatID, "Carry-over failed, try again.")
			return
		}
		for _, task := range pending {
			selected = append(selected, task.ID)
		}
	case "none":
		// empty selection: important tasks go to the backlog, the rest
		// are archived
	default:
		b.reply(chatID, "Usage: /carryover all|none")
		return
	}

	result, err := b.planSvc.ExecuteCarryOver(ctx, userID, selected)
	if err != nil {
		log.Printf("[error] carry-over: %v", err)
		b.reply(chatID, "Carry-over failed, try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("⏭ Carried %d, backlog %d, archived %d. /today",
		result.CarriedOver, result.MovedToBacklog, result.Archived))
}

func (b *Bot) handleBacklog(ctx context.Context, chatID int64, userID string) {
	notifications, err := b.planSvc.BacklogNotifications(ctx, userID)
	if err != nil {
		log.Printf("[error] backlog: %v", err)
		b.reply(chatID, "Could not load the backlog.")
		return
	}
	if len(notifications) == 0 {
		b.reply(chatID, "Backlog is empty. 🎉")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗃 <b>Backlog</b>\n")
	for _, n := range notifications {
		marker := ""
		if n.AlertAt != nil {
			marker = " ⚠️"
		}
		sb.WriteString(fmt.Sprintf("• [%s] %s — %dd%s\n", n.ResolvedQuadrant(), html.EscapeString(n.RawText), n.DaysInBacklog, marker))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, userID, args string) {
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		b.reply(chatID, "Usage: /done <n> (number from /today)")
		return
	}

	b.mu.Lock()
	ids := b.listed[chatID]
	b.mu.Unlock()

	if n > len(ids) {
		b.reply(chatID, "No such task; run /today first.")
		return
	}

	if err := b.taskSvc.Complete(ctx, userID, ids[n-1]); err != nil {
		log.Printf("[error] complete: %v", err)
		b.reply(chatID, "Could not complete the task.")
		return
	}
	b.reply(chatID, "✅ Done.")
}

func (b *Bot) handleView(ctx context.Context, chatID int64, userID, args string) {
	if args != "list" && args != "matrix" {
		b.reply(chatID, "Usage: /view list|matrix")
		return
	}
	if err := b.taskSvc.SetDefaultView(ctx, userID, args); err != nil {
		log.Printf("[error] set view: %v", err)
		b.reply(chatID, "Could not save the setting.")
		return
	}
	b.reply(chatID, "Saved.")
}

// SendDailyReports pushes the daily summary to every reachable user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.users.ListWithTelegram(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	now := time.Now()
	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := b.alertSvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("[error] summary for user %s: %v", user.ID, err)
			continue
		}
		b.reply(user.TelegramID, summary)
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[error] send message: %v", err)
	}
}
