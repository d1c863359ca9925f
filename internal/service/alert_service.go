package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"eisenplan/internal/clock"
	"eisenplan/internal/model"
	"eisenplan/internal/repository"
)

// AlertService builds human-readable summaries for daily notifications.
type AlertService struct {
	tasks *repository.TaskRepository
	plans *repository.PlanRepository
}

func NewAlertService(tasks *repository.TaskRepository, plans *repository.PlanRepository) *AlertService {
	return &AlertService{tasks: tasks, plans: plans}
}

// DailySummary renders today's working set, stuck backlog tasks, and
// pending review prompts for one user.
func (s *AlertService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	today := clock.Today(now)

	plan, err := s.plans.FindByDate(ctx, user.ID, today)
	if err != nil {
		return "", err
	}

	var pending []model.Task
	if plan != nil {
		for _, link := range plan.Tasks {
			if link.Task.Status == model.StatusActive && link.Task.BacklogAt == nil {
				pending = append(pending, link.Task)
			}
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		qi, qj := pending[i].ResolvedQuadrant(), pending[j].ResolvedQuadrant()
		if qi != qj {
			return qi < qj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	backlog, err := s.tasks.ListBacklog(ctx, user.ID, 10)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", clock.DayKey(today)))

	builder.WriteString("🔥 <b>Today</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— no open tasks\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatTaskLine(task, now))
		}
	}

	stuck := 0
	for _, task := range backlog {
		if task.AlertAt != nil {
			stuck++
		}
	}
	if len(backlog) > 0 {
		builder.WriteString(fmt.Sprintf("\n🗃 <b>Backlog</b> (%d, %d stuck)\n", len(backlog), stuck))
		for _, task := range backlog {
			builder.WriteString(formatBacklogLine(task, today))
		}
	}

	reviews := 0
	for _, task := range pending {
		if task.NeedsReviewAt != nil {
			reviews++
		}
	}
	if reviews > 0 {
		builder.WriteString(fmt.Sprintf("\n❓ %d task(s) waiting for your re-judgment\n", reviews))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTaskLine(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := quadrantIcon(task.ResolvedQuadrant())
	if task.AlertAt != nil {
		icon = "⚠️"
	}

	sb.WriteString(fmt.Sprintf("%s [%s] %s", icon, task.ResolvedQuadrant(), html.EscapeString(strings.TrimSpace(task.RawText))))

	if task.DueDate != nil {
		d := task.DueDate.In(clock.Zone)
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s", d.Format("2006-01-02")))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatBacklogLine(task model.Task, today time.Time) string {
	days := 0
	if task.BacklogAt != nil {
		days = clock.DaysBetween(*task.BacklogAt, today)
	}
	marker := ""
	if task.AlertAt != nil {
		marker = " ⚠️"
	}
	return fmt.Sprintf("• [%s] %s — %dd%s\n",
		task.ResolvedQuadrant(), html.EscapeString(strings.TrimSpace(task.RawText)), days, marker)
}

func quadrantIcon(q model.Quadrant) string {
	switch q {
	case model.QuadrantQ1:
		return "🔴"
	case model.QuadrantQ2:
		return "🟡"
	case model.QuadrantQ3:
		return "🔵"
	default:
		return "⚪"
	}
}
