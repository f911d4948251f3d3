package chat

// Bus topics carrying chat projections from the store to push delivery.
const (
	// TopicChannelUpdated carries a channelEvent: the full, sorted message
	// list of one channel after a mutation.
	TopicChannelUpdated = "chat.channel.updated"
	// TopicSessionsUpdated carries a sessionsEvent: the full admin inbox.
	TopicSessionsUpdated = "chat.sessions.updated"
)

// Envelope kinds pushed to WebSocket clients.
const (
	KindChannel  = "chat.channel"
	KindSessions = "chat.sessions"
)

// channelEvent is the bus payload for TopicChannelUpdated.
type channelEvent struct {
	Channel   string        `json:"channel"`
	StudentID string        `json:"studentId,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// sessionsEvent is the bus payload for TopicSessionsUpdated.
type sessionsEvent struct {
	Sessions []ChatSession `json:"sessions"`
}
