// Package board implements the terminal kanban client: an interactive bubbletea view and a
// headless watch mode, both driven by the realtime mirrors.
package board

import (
	"context"
	"fmt"

	"github.com/benvon/taskboard/internal/changefeed"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/realtime"
	"go.uber.org/zap"
)

// Stores groups the store ports a session writes through and bulk reads from
type Stores struct {
	Tasks    realtime.TaskStore
	Comments realtime.CommentStore
	Views    realtime.ViewStore
	Latest   realtime.LatestCommentStore
	// Metrics is optional; without it the sidebar stays empty
	Metrics realtime.MetricsReader
}

// Session owns the mirrors of one board client for one viewing party
type Session struct {
	Party   models.Party
	BotName string

	Tasks    *realtime.TaskSync
	Comments *realtime.CommentSync
	Unread   *realtime.UnreadTracker
	Metrics  *realtime.MetricsWatch
	// Bot is set in agent view and sends actions through the server's bot endpoint
	Bot *BotClient

	logger *zap.Logger
}

// NewSession wires the mirrors over stores and feed
func NewSession(stores Stores, feed changefeed.Feed, party models.Party, botName string, logger *zap.Logger) *Session {
	s := &Session{
		Party:    party,
		BotName:  botName,
		Tasks:    realtime.NewTaskSync(stores.Tasks, feed, logger),
		Comments: realtime.NewCommentSync(stores.Comments, feed, logger),
		Unread:   realtime.NewUnreadTracker(stores.Views, stores.Latest, feed, party, logger),
		logger:   logger,
	}
	if stores.Metrics != nil {
		s.Metrics = realtime.NewMetricsWatch(stores.Metrics, feed, botName, logger)
	}
	return s
}

// Start loads the board and begins following the feed
func (s *Session) Start(ctx context.Context) error {
	if err := s.Tasks.Start(ctx); err != nil {
		return err
	}
	if err := s.Unread.Watch(ctx, s.Tasks.IDs()); err != nil {
		s.Tasks.Stop()
		return fmt.Errorf("failed to start unread tracking: %w", err)
	}
	if s.Metrics != nil {
		if err := s.Metrics.Start(ctx); err != nil {
			// the board is usable without the sidebar
			s.logger.Warn("metrics_watch_failed", zap.String("bot_name", s.BotName), zap.Error(err))
			s.Metrics = nil
		}
	}
	s.logger.Info("board_session_started", zap.String("party", string(s.Party)), zap.Int("tasks", len(s.Tasks.IDs())))
	return nil
}

// SyncUnread points the unread tracker at the current task set. It is a no-op when the set is unchanged.
func (s *Session) SyncUnread(ctx context.Context) error {
	return s.Unread.Watch(ctx, s.Tasks.IDs())
}

// Close releases every subscription
func (s *Session) Close() {
	s.Comments.Close()
	s.Unread.Close()
	if s.Metrics != nil {
		s.Metrics.Stop()
	}
	s.Tasks.Stop()
}
