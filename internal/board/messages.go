package board

// tasksChangedMsg signals the task mirror changed
type tasksChangedMsg struct{}

// unreadChangedMsg signals unread flags may have changed
type unreadChangedMsg struct{}

// commentsChangedMsg signals the open thread changed
type commentsChangedMsg struct{}

// metricsChangedMsg signals the metrics row changed
type metricsChangedMsg struct{}

// noticeMsg carries a transient status line message
type noticeMsg struct {
	text string
	err  bool
}

// clearNoticeMsg clears the notice it was scheduled for
type clearNoticeMsg struct {
	seq int
}

// threadOpenedMsg reports the comment thread finished loading
type threadOpenedMsg struct {
	err error
}
