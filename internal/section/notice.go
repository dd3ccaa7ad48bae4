package section

import "sync"

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient message for the user, the toast of a terminal or
// page.
type Notice struct {
	Level   Level
	Message string
}

type NoticeSink interface {
	Notice(n Notice)
}

type NoticeFunc func(n Notice)

func (f NoticeFunc) Notice(n Notice) { f(n) }

// NoticeLog records notices in memory.
type NoticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *NoticeLog) Notice(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *NoticeLog) All() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.notices))
	copy(out, l.notices)
	return out
}

type discardNotices struct{}

func (discardNotices) Notice(Notice) {}
