package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"alarm-planner/internal/model"
	"alarm-planner/internal/repository"
)

const DefaultAgendaSize = 5

// AgendaService builds human-readable summaries of what is coming up.
type AgendaService struct {
	taskRepo *repository.TaskRepository
	loc      *time.Location
}

func NewAgendaService(taskRepo *repository.TaskRepository, loc *time.Location) *AgendaService {
	if loc == nil {
		loc = time.Local
	}
	return &AgendaService{taskRepo: taskRepo, loc: loc}
}

// Summary lists up to limit open tasks due from now on, as Telegram HTML.
func (s *AgendaService) Summary(ctx context.Context, now time.Time, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultAgendaSize
	}
	now = now.In(s.loc)
	tasks, err := s.taskRepo.Upcoming(ctx, model.MomentKey(now), limit)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("⏰ <b>Upcoming</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02 15:04")))

	if len(tasks) == 0 {
		builder.WriteString("— nothing scheduled\n")
		return strings.TrimSpace(builder.String()), nil
	}
	for _, task := range tasks {
		builder.WriteString(FormatTask(task, now, s.loc))
	}
	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one task line with its relative due time.
func FormatTask(task model.Task, now time.Time, loc *time.Location) string {
	var sb strings.Builder

	icon := "🟢"
	when := ""
	if due, err := task.Due(loc); err == nil {
		switch {
		case task.Completed:
			icon = "✅"
		case now.After(due):
			icon = "⚠️"
		case due.Sub(now) <= time.Hour:
			icon = "⏳"
		}
		when = humanize.RelTime(due, now, "ago", "from now")
	}

	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(fmt.Sprintf("   ⏰ %s", task.DueKey()))
	if when != "" {
		sb.WriteString(fmt.Sprintf(" · %s", when))
	}
	if task.Recurrence.Repeats() {
		sb.WriteString(fmt.Sprintf(" · ♻️ %s", task.Recurrence))
	}
	sb.WriteByte('\n')
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("   📝 %s\n", html.EscapeString(strings.TrimSpace(task.Description))))
	}
	return sb.String()
}
