package board

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// change is one line of watch output
type change struct {
	kind string
	text string
}

// diffTasks lists what changed between two board snapshots. Output is sorted by title for stable reporting.
func diffTasks(prev, cur map[uuid.UUID]*models.Task) []change {
	var out []change
	for id, t := range cur {
		old, ok := prev[id]
		switch {
		case !ok:
			out = append(out, change{"added", fmt.Sprintf("[%s] %s (%s)", t.Status, t.Title, t.Assignee)})
		case old.Status != t.Status:
			out = append(out, change{"moved", fmt.Sprintf("%s: %s -> %s", t.Title, old.Status, t.Status)})
		case old.Assignee != t.Assignee:
			out = append(out, change{"assigned", fmt.Sprintf("%s -> %s", t.Title, t.Assignee)})
		case old.Title != t.Title || old.Description != t.Description || old.Priority != t.Priority:
			out = append(out, change{"updated", t.Title})
		}
	}
	for id, t := range prev {
		if _, ok := cur[id]; !ok {
			out = append(out, change{"removed", t.Title})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].text != out[j].text {
			return out[i].text < out[j].text
		}
		return out[i].kind < out[j].kind
	})
	return out
}

// diffUnread lists tasks whose unread flag flipped. titles names the tasks; unknown ids are skipped.
func diffUnread(prev, cur map[uuid.UUID]bool, titles map[uuid.UUID]*models.Task) []change {
	var out []change
	for id, t := range titles {
		if prev[id] == cur[id] {
			continue
		}
		if cur[id] {
			out = append(out, change{"unread", t.Title})
		} else {
			out = append(out, change{"read", t.Title})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].text < out[j].text })
	return out
}

func snapshot(s *Session) map[uuid.UUID]*models.Task {
	tasks := s.Tasks.Tasks()
	out := make(map[uuid.UUID]*models.Task, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out
}

// RunWatch prints board changes to out until ctx is done. The session must be started.
func RunWatch(ctx context.Context, s *Session, out io.Writer) error {
	tasks := snapshot(s)
	unread := s.Unread.Snapshot()

	emit := func(changes []change) error {
		now := time.Now().Format("15:04:05")
		for _, c := range changes {
			if _, err := fmt.Fprintf(out, "%s %-8s %s\n", now, c.kind, c.text); err != nil {
				return err
			}
		}
		return nil
	}

	counts := make(map[models.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	for _, st := range models.TaskStatuses {
		if _, err := fmt.Fprintf(out, "%s: %d  ", st.Title(), counts[st]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(out, "(viewing as %s)\n", s.Party); err != nil {
		return err
	}

	var metricsCh <-chan struct{}
	if s.Metrics != nil {
		metricsCh = s.Metrics.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Tasks.Changes():
			cur := snapshot(s)
			if err := emit(diffTasks(tasks, cur)); err != nil {
				return err
			}
			tasks = cur
			if err := s.SyncUnread(ctx); err != nil {
				s.logger.Warn("unread_sync_failed", zap.Error(err))
			}
		case <-s.Unread.Changes():
			cur := s.Unread.Snapshot()
			if err := emit(diffUnread(unread, cur, tasks)); err != nil {
				return err
			}
			unread = cur
		case <-metricsCh:
			m, ok := s.Metrics.Metrics()
			if !ok {
				continue
			}
			line := change{"metrics", fmt.Sprintf("%s profit %s, win rate %s, trades %d",
				m.BotName, formatMoney(m.TotalProfit), formatPercent(m.WinRateTotal), m.TradesTotal)}
			if err := emit([]change{line}); err != nil {
				return err
			}
		}
	}
}
