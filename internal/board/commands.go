package board

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/realtime"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const (
	opTimeout      = 10 * time.Second
	noticeDuration = 4 * time.Second
)

// waitFor blocks until ch signals and then emits msg
func waitFor(ctx context.Context, ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			return msg
		}
	}
}

func clearNoticeAfter(seq int) tea.Cmd {
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}

// run executes op with a timeout and reports failure as a notice
func run(ctx context.Context, failure string, success string, op func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		if err := op(ctx); err != nil {
			return noticeMsg{text: fmt.Sprintf("%s: %v", failure, err), err: true}
		}
		if success == "" {
			return nil
		}
		return noticeMsg{text: success}
	}
}

func moveTaskCmd(ctx context.Context, s *Session, id uuid.UUID, status models.TaskStatus) tea.Cmd {
	return run(ctx, "Failed to move task", "", func(ctx context.Context) error {
		return s.Tasks.Move(ctx, id, status)
	})
}

func reassignTaskCmd(ctx context.Context, s *Session, id uuid.UUID, assignee models.Party) tea.Cmd {
	return run(ctx, "Failed to reassign task", "Assigned to "+string(assignee), func(ctx context.Context) error {
		return s.Tasks.Update(ctx, id, models.TaskPatch{Assignee: &assignee})
	})
}

func createTaskCmd(ctx context.Context, s *Session, in realtime.NewTask) tea.Cmd {
	return run(ctx, "Failed to create task", "Task created", func(ctx context.Context) error {
		_, err := s.Tasks.Create(ctx, in)
		return err
	})
}

func deleteTaskCmd(ctx context.Context, s *Session, id uuid.UUID) tea.Cmd {
	return run(ctx, "Failed to delete task", "Task deleted", func(ctx context.Context) error {
		return s.Tasks.Delete(ctx, id)
	})
}

func addCommentCmd(ctx context.Context, s *Session, content string) tea.Cmd {
	return run(ctx, "Failed to add comment", "", func(ctx context.Context) error {
		_, err := s.Comments.Add(ctx, content, s.Party)
		return err
	})
}

func markReadCmd(ctx context.Context, s *Session, id uuid.UUID) tea.Cmd {
	return run(ctx, "Failed to mark task as read", "", func(ctx context.Context) error {
		return s.Unread.MarkAsRead(ctx, id)
	})
}

func openThreadCmd(ctx context.Context, s *Session, id *uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		// ctx must outlive the call: the thread subscription is bound to it
		return threadOpenedMsg{err: s.Comments.Watch(ctx, id)}
	}
}

func syncUnreadCmd(ctx context.Context, s *Session) tea.Cmd {
	return run(ctx, "Failed to refresh unread state", "", s.SyncUnread)
}

func botCreateTaskCmd(ctx context.Context, c *BotClient, in realtime.NewTask) tea.Cmd {
	return run(ctx, "Bot failed to create task", "Bot created task", func(ctx context.Context) error {
		_, err := c.CreateTask(ctx, in.Title, in.Description, in.Priority)
		return err
	})
}

func botCommentCmd(ctx context.Context, c *BotClient, id uuid.UUID, content string) tea.Cmd {
	return run(ctx, "Bot failed to add comment", "Bot comment added", func(ctx context.Context) error {
		_, err := c.AddComment(ctx, id, content)
		return err
	})
}

// botCompleteCmd reports a completed task whose note was not saved as a failure notice
func botCompleteCmd(ctx context.Context, c *BotClient, id uuid.UUID, comment string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		result, err := c.CompleteTask(ctx, id, comment)
		if err != nil {
			return noticeMsg{text: fmt.Sprintf("Bot failed to complete task: %v", err), err: true}
		}
		if result.CommentError != "" {
			return noticeMsg{text: "Task completed but the note was not saved: " + result.CommentError, err: true}
		}
		return noticeMsg{text: "Bot completed task"}
	}
}
