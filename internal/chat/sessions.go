package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nstlabs/prepdesk/internal/store"
)

// unknownStudentName is shown for sessions whose metadata document was never
// written (the student's name update raced or failed).
const unknownStudentName = "Unknown Student"

// ChatSession is one row of the admin inbox: a student's private channel
// summarized by its latest message.
type ChatSession struct {
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}

// SessionList aggregates the private channel root into the admin inbox and
// keeps it fresh via a live subscription.
type SessionList struct {
	tree     store.Tree
	logger   *slog.Logger
	onChange func([]ChatSession)

	mu       sync.RWMutex
	sessions []ChatSession
	sub      *store.Subscription
}

// SessionListOption configures a SessionList.
type SessionListOption func(*SessionList)

// WithSessionsChange registers a callback invoked with the fresh inbox after
// every snapshot.
func WithSessionsChange(fn func([]ChatSession)) SessionListOption {
	return func(l *SessionList) {
		l.onChange = fn
	}
}

// NewSessionList creates the inbox aggregator.
func NewSessionList(tree store.Tree, opts ...SessionListOption) *SessionList {
	l := &SessionList{
		tree:   tree,
		logger: slog.Default().With("service", "chat_sessions"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes to the private channel root.
func (l *SessionList) Start(ctx context.Context) error {
	sub, err := l.tree.Subscribe(ctx, privateRoot, l.handleSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe sessions: %w", err)
	}
	l.sub = sub
	return nil
}

func (l *SessionList) handleSnapshot(_ context.Context, snapshot any) {
	sessions, err := aggregateSessions(snapshot)
	if err != nil {
		l.logger.Error("Failed to aggregate chat sessions", "error", err)
		return
	}

	l.mu.Lock()
	l.sessions = sessions
	l.mu.Unlock()

	if l.onChange != nil {
		l.onChange(sessions)
	}
}

// Sessions returns a copy of the current inbox, newest activity first.
func (l *SessionList) Sessions() []ChatSession {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ChatSession, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// Load reads and aggregates the inbox once, without subscribing.
func (l *SessionList) Load(ctx context.Context) ([]ChatSession, error) {
	snap, err := l.tree.Get(ctx, privateRoot)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return aggregateSessions(snap)
}

// Shutdown stops the live subscription.
func (l *SessionList) Shutdown() {
	if l.sub != nil {
		l.sub.Unsubscribe()
	}
}

// aggregateSessions collapses the private channel root snapshot into inbox
// rows. The "last" message is the latest by arrival order in the payload, not
// by timestamp, matching what a subscriber to that channel would render last
// on a tie.
func aggregateSessions(snapshot any) ([]ChatSession, error) {
	root, ok := snapshot.(*store.Object)
	if !ok || root == nil {
		return nil, nil
	}

	sessions := make([]ChatSession, 0, root.Len())
	for _, studentID := range root.Keys() {
		entry, _ := root.Get(studentID)
		node, ok := entry.(*store.Object)
		if !ok || node == nil {
			continue
		}

		session := ChatSession{StudentID: studentID, StudentName: unknownStudentName}
		if name, ok := node.Get("studentName"); ok {
			if s, ok := name.(string); ok && s != "" {
				session.StudentName = s
			}
		}

		if raw, ok := node.Get("messages"); ok {
			messages, err := decodeMessages(raw)
			if err != nil {
				return nil, fmt.Errorf("session %s: %w", studentID, err)
			}
			if len(messages) > 0 {
				last := messages[len(messages)-1]
				session.LastMessage = last.Text
				session.Timestamp = last.Timestamp
			}
		}
		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
	return sessions, nil
}
