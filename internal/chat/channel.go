package chat

import "fmt"

const (
	// publicPath is the tree path of the single global broadcast channel.
	publicPath = "universal_chat"
	// privateRoot is the tree prefix holding one support channel per student.
	privateRoot = "chats"
)

type channelKind int

const (
	kindPublic channelKind = iota
	kindPrivate
)

// Channel identifies one independently ordered message stream: the public
// broadcast channel or a student's private support channel. Channels are
// created implicitly on first write and never explicitly deleted.
type Channel struct {
	kind      channelKind
	studentID string
}

// PublicChannel returns the global broadcast channel.
func PublicChannel() Channel {
	return Channel{kind: kindPublic}
}

// PrivateChannel returns the private support channel for a student.
func PrivateChannel(studentID string) Channel {
	return Channel{kind: kindPrivate, studentID: studentID}
}

// IsPublic reports whether this is the global broadcast channel.
func (c Channel) IsPublic() bool {
	return c.kind == kindPublic
}

// StudentID returns the owning student for a private channel, or "" for the
// public channel.
func (c Channel) StudentID() string {
	return c.studentID
}

// IsZero reports whether the channel is unset (no active message view).
func (c Channel) IsZero() bool {
	return c == Channel{}
}

// MessagesPath returns the tree path of the channel's message collection.
func (c Channel) MessagesPath() string {
	if c.kind == kindPublic {
		return publicPath
	}
	return privateRoot + "/" + c.studentID + "/messages"
}

// MetaPath returns the tree path of the private channel's metadata document
// (student display name). Only meaningful for private channels.
func (c Channel) MetaPath() string {
	return privateRoot + "/" + c.studentID
}

func (c Channel) String() string {
	if c.kind == kindPublic {
		return "public"
	}
	return fmt.Sprintf("private(%s)", c.studentID)
}
