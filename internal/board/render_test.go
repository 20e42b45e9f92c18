package board

import (
	"strings"
	"testing"

	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdef", 5, "abcd…"},
		{"multibyte", "héllo wörld", 4, "hél…"},
		{"one", "abc", 1, "…"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, truncate(tt.in, tt.n))
		})
	}
}

func TestFormatMoney(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{12.5, "$12.50"},
		{1234.5, "$1,234.50"},
		{-12, "-$12.00"},
		{1234567.25, "$1,234,567.25"},
		{-999999.5, "-$999,999.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(tt.in))
	}
}

func TestGroupThousands(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0", groupThousands("0"))
	assert.Equal(t, "999", groupThousands("999"))
	assert.Equal(t, "1,000", groupThousands("1000"))
	assert.Equal(t, "123,456,789", groupThousands("123456789"))
	assert.Equal(t, "-12,345", groupThousands("-12345"))
}

func TestColumnsOf(t *testing.T) {
	t.Parallel()
	a := &models.Task{ID: uuid.New(), Title: "a", Status: models.TaskStatusTodo}
	b := &models.Task{ID: uuid.New(), Title: "b", Status: models.TaskStatusReview}
	c := &models.Task{ID: uuid.New(), Title: "c", Status: models.TaskStatusTodo}
	stray := &models.Task{ID: uuid.New(), Title: "stray", Status: "archived"}

	cols := columnsOf([]*models.Task{a, b, c, stray})
	assert.Len(t, cols, 4)
	assert.Equal(t, []*models.Task{a, c}, cols[0])
	assert.Empty(t, cols[1])
	assert.Equal(t, []*models.Task{b}, cols[2])
	assert.Empty(t, cols[3])
}

func TestRenderColumns(t *testing.T) {
	t.Parallel()
	read := &models.Task{ID: uuid.New(), Title: "Write docs", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow}
	unread := &models.Task{ID: uuid.New(), Title: "Fix feed", Status: models.TaskStatusInProgress, Priority: models.TaskPriorityHigh, Assignee: models.PartyAgent}

	out := renderColumns(columnsOf([]*models.Task{read, unread}), map[uuid.UUID]bool{unread.ID: true}, 0, 0, 120, 0)
	assert.Contains(t, out, "To Do (1)")
	assert.Contains(t, out, "In Progress (1)")
	assert.Contains(t, out, "Completed (0)")
	assert.Contains(t, out, "Write docs")
	assert.Contains(t, out, "@agent")
	assert.Contains(t, out, "no tasks")
	assert.Equal(t, 1, strings.Count(out, unreadDot))
}

func TestRenderTaskLineMarksUnread(t *testing.T) {
	t.Parallel()
	task := &models.Task{ID: uuid.New(), Title: "Ship it", Priority: models.TaskPriorityHigh}
	assert.Contains(t, renderTaskLine(task, true, false, 30), unreadDot)
	assert.NotContains(t, renderTaskLine(task, false, false, 30), unreadDot)
	assert.Contains(t, renderTaskLine(task, false, false, 30), "!")
}

func TestRenderMetrics(t *testing.T) {
	t.Parallel()
	empty := renderMetrics("Crypto_Chad", nil, false)
	assert.Contains(t, empty, "Crypto_Chad")
	assert.Contains(t, empty, "No metrics yet")

	full := renderMetrics("Crypto_Chad", &models.TradingMetrics{
		BotName:      "Crypto_Chad",
		TotalProfit:  1523.4,
		ProfitWeek:   -20,
		WinRateTotal: 61.5,
		TradesTotal:  1200,
	}, true)
	assert.Contains(t, full, "$1,523.40")
	assert.Contains(t, full, "-$20.00")
	assert.Contains(t, full, "61.50%")
	assert.Contains(t, full, "1,200")
	assert.Contains(t, full, "Win Rate")
}

func TestRenderThread(t *testing.T) {
	t.Parallel()
	task := &models.Task{ID: uuid.New(), Title: "Rebalance", Status: models.TaskStatusReview, Priority: models.TaskPriorityMedium, Assignee: models.PartyAgent}

	assert.Contains(t, renderThread(task, nil, 60), "No comments yet")

	out := renderThread(task, []*models.Comment{
		{ID: uuid.New(), TaskID: task.ID, Author: models.PartyHuman, Content: "please check"},
		{ID: uuid.New(), TaskID: task.ID, Author: models.PartyAgent, Content: "done"},
	}, 60)
	assert.Contains(t, out, "Rebalance")
	assert.Contains(t, out, "please check")
	assert.Contains(t, out, "agent")
	assert.Contains(t, out, "Review")
}
