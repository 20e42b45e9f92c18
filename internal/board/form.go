package board

import (
	"strings"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/realtime"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type formField int

const (
	fieldTitle formField = iota
	fieldDescription
	fieldAssignee
	fieldPriority
)

var priorities = []models.TaskPriority{models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh}

// taskForm is the new task overlay. The bot variant has no assignee field: the server
// always assigns bot-created tasks to the agent.
type taskForm struct {
	bot bool

	title       textinput.Model
	description textinput.Model
	assignee    models.Party
	priority    models.TaskPriority
	// status is the column the form was opened from
	status models.TaskStatus

	focus int
	width int
}

func newTaskForm(bot bool, assignee models.Party, status models.TaskStatus, width int) (taskForm, tea.Cmd) {
	inputWidth := max(width-24, 20)

	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200
	title.Width = inputWidth

	description := textinput.New()
	description.Placeholder = "Description (optional)"
	description.CharLimit = 2000
	description.Width = inputWidth

	f := taskForm{
		bot:         bot,
		title:       title,
		description: description,
		assignee:    assignee,
		priority:    models.TaskPriorityMedium,
		status:      status,
		width:       width,
	}
	cmd := f.title.Focus()
	return f, cmd
}

func (f taskForm) fields() []formField {
	if f.bot {
		return []formField{fieldTitle, fieldDescription, fieldPriority}
	}
	return []formField{fieldTitle, fieldDescription, fieldAssignee, fieldPriority}
}

func (f taskForm) current() formField {
	return f.fields()[f.focus]
}

func (f taskForm) move(step int) (taskForm, tea.Cmd) {
	n := len(f.fields())
	f.focus = (f.focus + step + n) % n
	f.title.Blur()
	f.description.Blur()
	var cmd tea.Cmd
	switch f.current() {
	case fieldTitle:
		cmd = f.title.Focus()
	case fieldDescription:
		cmd = f.description.Focus()
	}
	return f, cmd
}

func (f taskForm) update(msg tea.KeyMsg) (taskForm, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		return f.move(1)
	case tea.KeyShiftTab, tea.KeyUp:
		return f.move(-1)
	}

	var cmd tea.Cmd
	switch f.current() {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldAssignee:
		if isChoiceKey(msg) {
			f.assignee = f.assignee.Other()
		}
	case fieldPriority:
		switch {
		case msg.Type == tea.KeyLeft || msg.String() == "h":
			f.priority = cyclePriority(f.priority, -1)
		case isChoiceKey(msg):
			f.priority = cyclePriority(f.priority, 1)
		}
	}
	return f, cmd
}

func isChoiceKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case " ", "left", "right", "h", "l":
		return true
	}
	return false
}

func cyclePriority(p models.TaskPriority, step int) models.TaskPriority {
	for i, candidate := range priorities {
		if candidate == p {
			return priorities[(i+step+len(priorities))%len(priorities)]
		}
	}
	return models.TaskPriorityMedium
}

// valid reports whether the form can be submitted
func (f taskForm) valid() bool {
	return strings.TrimSpace(f.title.Value()) != ""
}

func (f taskForm) newTask() realtime.NewTask {
	return realtime.NewTask{
		Title:       f.title.Value(),
		Description: f.description.Value(),
		Assignee:    f.assignee,
		Priority:    f.priority,
		Status:      f.status,
	}
}

func (f taskForm) view() string {
	heading := formHeadingStyle.Render("New task") + dimStyle.Render(" in "+string(f.status))
	if f.bot {
		heading = formHeadingStyle.Render("New task as bot") + dimStyle.Render(" assigned to agent")
	}

	label := func(field formField, text string) string {
		if f.current() == field {
			return focusedFieldStyle.Render("> " + text)
		}
		return dimStyle.Render("  " + text)
	}
	choice := func(field formField, value string) string {
		if f.current() == field {
			return value + dimStyle.Render("  (space to change)")
		}
		return value
	}

	rows := []string{
		heading,
		label(fieldTitle, "Title        ") + f.title.View(),
		label(fieldDescription, "Description  ") + f.description.View(),
	}
	if !f.bot {
		rows = append(rows, label(fieldAssignee, "Assignee     ")+choice(fieldAssignee, string(f.assignee)))
	}
	rows = append(rows, label(fieldPriority, "Priority     ")+choice(fieldPriority, priorityMarker(f.priority)+" "+string(f.priority)))
	return formStyle.Width(max(f.width-2, 40)).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
