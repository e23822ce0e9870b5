package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventDocumentUpdate carries content relayed from another room member.
	EventDocumentUpdate EventKind = iota
	// EventNewMessage carries a server-stamped chat message.
	EventNewMessage
	// EventDocumentJoined acknowledges a join to the joining client only.
	EventDocumentJoined
	// EventDocumentLeft acknowledges a leave to the leaving client only.
	EventDocumentLeft
	// EventError notifies a client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind       EventKind
	DocumentID string
	Content    string
	Message    ChatMessage
	Error      *CoreError
}

// Edit is a document change on its way through the relay. It is never stored.
type Edit struct {
	DocumentID string
	Content    string
	Origin     string
}

// ChatMessage is an ephemeral chat line. Timestamp is always assigned by the hub.
type ChatMessage struct {
	DocumentID string
	Text       string
	Sender     string
	Timestamp  time.Time
}
