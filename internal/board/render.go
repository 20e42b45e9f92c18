package board

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/benvon/taskboard/internal/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

const (
	sidebarWidth   = 30
	minColumnWidth = 18
	unreadDot      = "●"
)

// columnsOf buckets tasks by status in board order, keeping the input order within a column
func columnsOf(tasks []*models.Task) [][]*models.Task {
	cols := make([][]*models.Task, len(models.TaskStatuses))
	for _, t := range tasks {
		for i, s := range models.TaskStatuses {
			if t.Status == s {
				cols[i] = append(cols[i], t)
				break
			}
		}
	}
	return cols
}

func renderTaskLine(t *models.Task, unread, selected bool, width int) string {
	dot := " "
	if unread {
		dot = unreadDotStyle.Render(unreadDot)
	}
	marker := priorityStyle(t.Priority).Render(priorityMarker(t.Priority))
	title := truncate(t.Title, width-4)
	if selected {
		title = selectedTaskStyle.Render(title)
	}
	line := dot + marker + " " + title
	if t.Assignee == models.PartyAgent {
		line += dimStyle.Render(" @agent")
	}
	return line
}

func priorityMarker(p models.TaskPriority) string {
	switch p {
	case models.TaskPriorityHigh:
		return "!"
	case models.TaskPriorityLow:
		return "·"
	default:
		return "•"
	}
}

// renderColumns draws the four board columns side by side
func renderColumns(cols [][]*models.Task, unread map[uuid.UUID]bool, focusCol, focusRow, width, height int) string {
	colWidth := width/len(models.TaskStatuses) - 4
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}
	rendered := make([]string, len(models.TaskStatuses))
	for i, status := range models.TaskStatuses {
		var b strings.Builder
		b.WriteString(columnTitleStyle.Render(fmt.Sprintf("%s (%d)", status.Title(), len(cols[i]))))
		b.WriteString("\n")
		if len(cols[i]) == 0 {
			b.WriteString(dimStyle.Render("no tasks"))
		}
		for j, t := range cols[i] {
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString(renderTaskLine(t, unread[t.ID], i == focusCol && j == focusRow, colWidth))
		}
		style := columnStyle
		if i == focusCol {
			style = focusedColumnStyle
		}
		style = style.Width(colWidth)
		if height > 0 {
			style = style.Height(height)
		}
		rendered[i] = style.Render(b.String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderMetrics draws the trading metrics sidebar
func renderMetrics(botName string, m *models.TradingMetrics, ok bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(botName))
	b.WriteString("\n")
	if !ok || m == nil {
		b.WriteString(dimStyle.Render("No metrics yet"))
		return sidebarStyle.Width(sidebarWidth).Render(b.String())
	}

	section := func(title string, rows ...[2]string) {
		b.WriteString("\n")
		b.WriteString(columnTitleStyle.Render(title))
		for _, r := range rows {
			b.WriteString("\n")
			b.WriteString(metricRow(r[0], r[1]))
		}
		b.WriteString("\n")
	}
	section("Profit",
		[2]string{"Total", signed(m.TotalProfit, formatMoney(m.TotalProfit))},
		[2]string{"Yesterday", signed(m.ProfitYesterday, formatMoney(m.ProfitYesterday))},
		[2]string{"7 Days", signed(m.ProfitWeek, formatMoney(m.ProfitWeek))},
	)
	section("Win Rate",
		[2]string{"Total", formatPercent(m.WinRateTotal)},
		[2]string{"Yesterday", formatPercent(m.WinRateYesterday)},
		[2]string{"7 Days", formatPercent(m.WinRateWeek)},
	)
	section("Trade Count",
		[2]string{"Total", groupThousands(strconv.FormatInt(m.TradesTotal, 10))},
		[2]string{"Yesterday", groupThousands(strconv.FormatInt(m.TradesYesterday, 10))},
		[2]string{"7 Days", groupThousands(strconv.FormatInt(m.TradesWeek, 10))},
	)
	if !m.UpdatedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Updated " + m.UpdatedAt.Local().Format("15:04:05")))
	}
	return sidebarStyle.Width(sidebarWidth).Render(b.String())
}

func metricRow(label, value string) string {
	gap := sidebarWidth - 2 - lipgloss.Width(label) - lipgloss.Width(value)
	if gap < 1 {
		gap = 1
	}
	return dimStyle.Render(label) + strings.Repeat(" ", gap) + value
}

func signed(v float64, text string) string {
	if v < 0 {
		return lossStyle.Render(text)
	}
	return profitStyle.Render(text)
}

// formatMoney renders v as dollars with two decimals and thousands separators, sign first
func formatMoney(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	out := "$" + groupThousands(whole) + "." + frac
	if v < 0 {
		return "-" + out
	}
	return out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	if len(digits) <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// renderThread draws the comment pane for task
func renderThread(t *models.Task, comments []*models.Comment, width int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(t.Title))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s · assigned to %s", t.Status.Title(), t.Priority, t.Assignee)))
	if t.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(t.Description))
	}
	b.WriteString("\n\n")
	if len(comments) == 0 {
		b.WriteString(dimStyle.Render("No comments yet"))
	}
	for i, c := range comments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(authorStyle(c.Author).Render(string(c.Author)))
		b.WriteString(dimStyle.Render(" " + c.CreatedAt.Local().Format("Jan 2 15:04")))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(c.Content))
	}
	return columnStyle.Width(width).Render(b.String())
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
