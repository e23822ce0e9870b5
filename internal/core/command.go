package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinDocument subscribes the client to a document room.
	CommandJoinDocument CommandKind = iota
	// CommandLeaveDocument unsubscribes the client from a document room.
	CommandLeaveDocument
	// CommandDocumentChange relays new document content to the other room members.
	CommandDocumentChange
	// CommandChatMessage relays a chat message to every room member.
	CommandChatMessage
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoinDocument:
		return "join_document"
	case CommandLeaveDocument:
		return "leave_document"
	case CommandDocumentChange:
		return "document_change"
	case CommandChatMessage:
		return "chat_message"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind       CommandKind
	DocumentID string
	Content    string
	Message    ChatMessage
}
