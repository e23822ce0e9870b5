package proto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinDocument   = "join-document"
	InboundTypeLeaveDocument  = "leave-document"
	InboundTypeDocumentChange = "document-change"
	InboundTypeChatMessage    = "chat-message"

	OutboundTypeDocumentUpdate = "document-update"
	OutboundTypeNewMessage     = "new-message"
	OutboundTypeDocumentJoined = "document-joined"
	OutboundTypeDocumentLeft   = "document-left"
	OutboundTypeError          = "error"
)

var errMissingDocumentID = errors.New("documentId is required")

// DocumentRef names a document room. On the wire it is either a bare JSON
// string or an object with a documentId field.
type DocumentRef struct {
	DocumentID string `json:"documentId"`
}

// UnmarshalJSON accepts both "<id>" and {"documentId": "<id>"}.
func (d *DocumentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &d.DocumentID)
	}
	type plain DocumentRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = DocumentRef(p)
	return nil
}

// Validate reports whether the reference names a document.
func (d DocumentRef) Validate() error {
	if d.DocumentID == "" {
		return errMissingDocumentID
	}
	return nil
}

// DocumentChangeData carries the full new content of a document.
type DocumentChangeData struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
}

// ChatMessageData is a chat message from the client.
type ChatMessageData struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
	Sender     string `json:"sender,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventDocumentUpdate is relayed to every peer of the editing client.
type EventDocumentUpdate struct {
	DocumentID string `json:"documentId"`
	Content    string `json:"content"`
}

// EventNewMessage is relayed to the whole room, sender included.
type EventNewMessage struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
	Sender     string `json:"sender"`
	Timestamp  string `json:"timestamp"`
}

// EventDocumentMembership acknowledges a join or leave to the requester.
type EventDocumentMembership struct {
	DocumentID string `json:"documentId"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NewError builds an error envelope.
func NewError(code, msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Error: &Error{Code: code, Msg: msg}}
}
