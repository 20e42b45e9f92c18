package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/taskboard/internal/models"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

type mode int

const (
	modeBoard mode = iota
	modeThread
	modeAddComment
	modeNewTask
	// agent view: bot comment and bot completion note for targetID
	modeBotComment
	modeComplete
)

// Model is the bubbletea model of the interactive board
type Model struct {
	ctx     context.Context
	session *Session

	mode mode
	col  int
	row  int

	// focusID keeps the cursor on a task that is moving between columns
	focusID *uuid.UUID
	// threadID is the task whose comments are open
	threadID uuid.UUID
	// deleteID is set while a delete waits for confirmation
	deleteID *uuid.UUID
	// targetID is the task a bot comment or completion is for
	targetID uuid.UUID

	input textinput.Model
	form  taskForm

	notice    string
	noticeErr bool
	noticeSeq int

	width  int
	height int
}

// NewModel creates the board model over a started session. ctx bounds every subscription the model opens.
func NewModel(ctx context.Context, session *Session) Model {
	ti := textinput.New()
	ti.CharLimit = 2000
	return Model{
		ctx:     ctx,
		session: session,
		input:   ti,
	}
}

// Init starts listening to every mirror
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitFor(m.ctx, m.session.Tasks.Changes(), tasksChangedMsg{}),
		waitFor(m.ctx, m.session.Unread.Changes(), unreadChangedMsg{}),
		waitFor(m.ctx, m.session.Comments.Changes(), commentsChangedMsg{}),
	}
	if m.session.Metrics != nil {
		cmds = append(cmds, waitFor(m.ctx, m.session.Metrics.Changes(), metricsChangedMsg{}))
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tasksChangedMsg:
		m.syncSelection()
		if id, ok := m.openTaskID(); ok {
			if _, exists := m.session.Tasks.Task(id); !exists {
				m.mode = modeBoard
				m.input.Blur()
				return m.withNotice("Task was deleted", true, tea.Batch(
					waitFor(m.ctx, m.session.Tasks.Changes(), tasksChangedMsg{}),
					openThreadCmd(m.ctx, m.session, nil),
					syncUnreadCmd(m.ctx, m.session),
				))
			}
		}
		return m, tea.Batch(
			waitFor(m.ctx, m.session.Tasks.Changes(), tasksChangedMsg{}),
			syncUnreadCmd(m.ctx, m.session),
		)

	case unreadChangedMsg:
		return m, waitFor(m.ctx, m.session.Unread.Changes(), unreadChangedMsg{})

	case commentsChangedMsg:
		cmds := []tea.Cmd{waitFor(m.ctx, m.session.Comments.Changes(), commentsChangedMsg{})}
		if m.mode == modeThread || m.mode == modeAddComment {
			// an open thread counts as seen
			cmds = append(cmds, markReadCmd(m.ctx, m.session, m.threadID))
		}
		return m, tea.Batch(cmds...)

	case metricsChangedMsg:
		if m.session.Metrics == nil {
			return m, nil
		}
		return m, waitFor(m.ctx, m.session.Metrics.Changes(), metricsChangedMsg{})

	case threadOpenedMsg:
		if msg.err != nil {
			return m.withNotice(fmt.Sprintf("Failed to load comments: %v", msg.err), true, nil)
		}
		return m, nil

	case noticeMsg:
		return m.withNotice(msg.text, msg.err, nil)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeErr = false
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// openTaskID returns the task the current mode is bound to
func (m Model) openTaskID() (uuid.UUID, bool) {
	switch m.mode {
	case modeThread, modeAddComment:
		return m.threadID, true
	case modeBotComment, modeComplete:
		return m.targetID, true
	}
	return uuid.Nil, false
}

func (m Model) withNotice(text string, isErr bool, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return m, tea.Batch(cmd, clearNoticeAfter(m.noticeSeq))
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.deleteID != nil {
		id := *m.deleteID
		m.deleteID = nil
		if msg.String() == "y" || msg.String() == "Y" {
			return m, deleteTaskCmd(m.ctx, m.session, id)
		}
		return m, nil
	}

	switch m.mode {
	case modeNewTask:
		return m.handleFormKey(msg)
	case modeAddComment, modeBotComment, modeComplete:
		return m.handleInputKey(msg)
	case modeThread:
		return m.handleThreadKey(msg)
	default:
		return m.handleBoardKey(msg)
	}
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := columnsOf(m.session.Tasks.Tasks())
	selected := m.selected(cols)

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Left):
		if m.col > 0 {
			m.col--
			m.row = clamp(m.row, len(cols[m.col]))
		}
	case key.Matches(msg, keys.Right):
		if m.col < len(cols)-1 {
			m.col++
			m.row = clamp(m.row, len(cols[m.col]))
		}
	case key.Matches(msg, keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, keys.Down):
		if m.row < len(cols[m.col])-1 {
			m.row++
		}
	case key.Matches(msg, keys.MoveBack):
		return m.move(selected, -1)
	case key.Matches(msg, keys.MoveNext):
		return m.move(selected, 1)
	case key.Matches(msg, keys.Open):
		if selected == nil {
			return m, nil
		}
		m.mode = modeThread
		m.threadID = selected.ID
		id := selected.ID
		return m, tea.Batch(
			openThreadCmd(m.ctx, m.session, &id),
			markReadCmd(m.ctx, m.session, id),
		)
	case key.Matches(msg, keys.New):
		return m.openForm(false)
	case key.Matches(msg, keys.Reassign):
		if selected == nil {
			return m, nil
		}
		return m, reassignTaskCmd(m.ctx, m.session, selected.ID, selected.Assignee.Other())
	case key.Matches(msg, keys.Delete):
		if selected == nil {
			return m, nil
		}
		id := selected.ID
		m.deleteID = &id
	default:
		if m.session.Bot != nil {
			return m.handleAgentKey(msg, selected)
		}
	}
	return m, nil
}

func (m Model) openForm(bot bool) (tea.Model, tea.Cmd) {
	form, cmd := newTaskForm(bot, m.session.Party, models.TaskStatuses[m.col], m.mainWidth())
	m.form = form
	m.mode = modeNewTask
	return m, cmd
}

// handleAgentKey serves the bot-control bindings of agent view
func (m Model) handleAgentKey(msg tea.KeyMsg, selected *models.Task) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, agentKeys.Create):
		return m.openForm(true)
	case key.Matches(msg, agentKeys.Comment):
		if selected == nil {
			return m, nil
		}
		return m.openInput(modeBotComment, selected.ID, "Comment as bot")
	case key.Matches(msg, agentKeys.Complete):
		if selected == nil {
			return m, nil
		}
		if selected.Status == models.TaskStatusCompleted {
			return m.withNotice("Task is already completed", true, nil)
		}
		return m.openInput(modeComplete, selected.ID, "Completion note (optional)")
	}
	return m, nil
}

func (m Model) openInput(next mode, target uuid.UUID, placeholder string) (tea.Model, tea.Cmd) {
	m.mode = next
	m.targetID = target
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) move(t *models.Task, step int) (tea.Model, tea.Cmd) {
	if t == nil {
		return m, nil
	}
	next := statusIndex(t.Status) + step
	if next < 0 || next >= len(models.TaskStatuses) {
		return m, nil
	}
	id := t.ID
	m.focusID = &id
	return m, moveTaskCmd(m.ctx, m.session, id, models.TaskStatuses[next])
}

func (m Model) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, commentKeys.Close):
		m.mode = modeBoard
		return m, openThreadCmd(m.ctx, m.session, nil)
	case key.Matches(msg, commentKeys.Add):
		return m.openInput(modeAddComment, m.threadID, "Write a comment")
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	back := modeBoard
	if m.mode == modeAddComment {
		back = modeThread
	}
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = back
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" && m.mode != modeComplete {
			return m, nil
		}
		var cmd tea.Cmd
		switch m.mode {
		case modeAddComment:
			cmd = addCommentCmd(m.ctx, m.session, text)
		case modeBotComment:
			cmd = botCommentCmd(m.ctx, m.session.Bot, m.targetID, text)
		case modeComplete:
			cmd = botCompleteCmd(m.ctx, m.session.Bot, m.targetID, text)
		}
		m.mode = back
		m.input.SetValue("")
		m.input.Blur()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeBoard
		return m, nil
	case tea.KeyEnter:
		if !m.form.valid() {
			return m, nil
		}
		var cmd tea.Cmd
		if m.form.bot {
			cmd = botCreateTaskCmd(m.ctx, m.session.Bot, m.form.newTask())
		} else {
			cmd = createTaskCmd(m.ctx, m.session, m.form.newTask())
		}
		m.mode = modeBoard
		return m, cmd
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

// syncSelection keeps the cursor inside the board and on a moved task
func (m *Model) syncSelection() {
	cols := columnsOf(m.session.Tasks.Tasks())
	if m.focusID != nil {
		for c, col := range cols {
			for r, t := range col {
				if t.ID == *m.focusID {
					m.col, m.row = c, r
					m.focusID = nil
					return
				}
			}
		}
	}
	m.row = clamp(m.row, len(cols[m.col]))
}

func (m Model) selected(cols [][]*models.Task) *models.Task {
	if m.row < 0 || m.row >= len(cols[m.col]) {
		return nil
	}
	return cols[m.col][m.row]
}

// Selected returns the task under the cursor
func (m Model) Selected() *models.Task {
	return m.selected(columnsOf(m.session.Tasks.Tasks()))
}

// View renders the board
func (m Model) View() string {
	header := headerStyle.Render("Taskboard") + dimStyle.Render(" · viewing as "+string(m.session.Party))
	if m.session.Bot != nil {
		header += dimStyle.Render(" · bot controls on")
	}

	var body string
	if m.mode == modeThread || m.mode == modeAddComment {
		t, ok := m.session.Tasks.Task(m.threadID)
		if ok {
			body = renderThread(t, m.session.Comments.Comments(), m.mainWidth())
		}
	} else {
		body = renderColumns(columnsOf(m.session.Tasks.Tasks()), m.session.Unread.Snapshot(), m.col, m.row, m.mainWidth(), 0)
	}
	if m.session.Metrics != nil {
		metrics, ok := m.session.Metrics.Metrics()
		body = lipgloss.JoinHorizontal(lipgloss.Top, renderMetrics(m.session.BotName, metrics, ok), body)
	}

	parts := []string{header, body}
	switch m.mode {
	case modeNewTask:
		parts = append(parts, m.form.view())
	case modeAddComment, modeBotComment, modeComplete:
		parts = append(parts, m.input.View())
	}
	parts = append(parts, m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) mainWidth() int {
	w := m.width
	if w == 0 {
		w = 120
	}
	if m.session.Metrics != nil {
		w -= sidebarWidth + 4
	}
	return w
}

func (m Model) statusBar() string {
	if m.deleteID != nil {
		title := ""
		if t, ok := m.session.Tasks.Task(*m.deleteID); ok {
			title = truncate(t.Title, 40)
		}
		return confirmBarStyle.Render(fmt.Sprintf("Delete %q? (y/n)", title))
	}
	if m.notice != "" {
		if m.noticeErr {
			return errorBarStyle.Render(" " + m.notice + " ")
		}
		return noticeBarStyle.Render(m.notice)
	}
	switch m.mode {
	case modeThread:
		return statusBarStyle.Render(" " + hints(commentKeys.Add, commentKeys.Close, keys.Quit) + " ")
	case modeNewTask:
		return statusBarStyle.Render(" tab next field  enter save  esc cancel ")
	case modeComplete:
		return statusBarStyle.Render(" enter complete  esc cancel ")
	case modeAddComment, modeBotComment:
		return statusBarStyle.Render(" enter save  esc cancel ")
	default:
		bindings := []key.Binding{keys.Left, keys.Up, keys.MoveNext, keys.Open, keys.New, keys.Reassign, keys.Delete}
		if m.session.Bot != nil {
			bindings = append(bindings, agentKeys.Create, agentKeys.Comment, agentKeys.Complete)
		}
		return statusBarStyle.Render(" " + hints(append(bindings, keys.Quit)...) + " ")
	}
}

func statusIndex(s models.TaskStatus) int {
	for i, st := range models.TaskStatuses {
		if st == s {
			return i
		}
	}
	return 0
}

// clamp limits row to a list of n items
func clamp(row, n int) int {
	if n == 0 || row < 0 {
		return 0
	}
	if row >= n {
		return n - 1
	}
	return row
}
