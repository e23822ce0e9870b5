package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/wiredoc-server/internal/core"
	"github.com/vovakirdan/wiredoc-server/internal/documents"
	"github.com/vovakirdan/wiredoc-server/internal/proto"
)

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var errMissingDocumentID = errors.New("documentId is required")

type inboundDecoder func(data json.RawMessage) (*core.Command, error)

var inboundDecoders = map[string]inboundDecoder{
	proto.InboundTypeJoinDocument:   decodeMembership(core.CommandJoinDocument),
	proto.InboundTypeLeaveDocument:  decodeMembership(core.CommandLeaveDocument),
	proto.InboundTypeDocumentChange: decodeDocumentChange,
	proto.InboundTypeChatMessage:    decodeChatMessage,
}

// inboundToCommand maps a client frame to a hub command. A non-nil *proto.Error
// is meant for the sender only; the connection stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	decode, ok := inboundDecoders[inbound.Type]
	if !ok {
		return nil, &proto.Error{Code: core.ErrCodeUnknownEvent, Msg: "unknown event type"}
	}
	if len(inbound.Data) == 0 {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "data is required"}
	}
	cmd, err := decode(inbound.Data)
	if err != nil {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}
	}
	return cmd, nil
}

func decodeMembership(kind core.CommandKind) inboundDecoder {
	return func(data json.RawMessage) (*core.Command, error) {
		var ref proto.DocumentRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, err
		}
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		return &core.Command{Kind: kind, DocumentID: ref.DocumentID}, nil
	}
}

func decodeDocumentChange(data json.RawMessage) (*core.Command, error) {
	var change proto.DocumentChangeData
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, err
	}
	if change.DocumentID == "" {
		return nil, errMissingDocumentID
	}
	if len(change.Content) > documents.MaxContentBytes {
		return nil, fmt.Errorf("content exceeds %d bytes", documents.MaxContentBytes)
	}
	return &core.Command{
		Kind:       core.CommandDocumentChange,
		DocumentID: change.DocumentID,
		Content:    change.Content,
	}, nil
}

func decodeChatMessage(data json.RawMessage) (*core.Command, error) {
	var msg proto.ChatMessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.DocumentID == "" {
		return nil, errMissingDocumentID
	}
	// Timestamp is left zero; the hub stamps it.
	return &core.Command{
		Kind:       core.CommandChatMessage,
		DocumentID: msg.DocumentID,
		Message: core.ChatMessage{
			DocumentID: msg.DocumentID,
			Text:       msg.Message,
			Sender:     msg.Sender,
		},
	}, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventDocumentUpdate:
		return proto.Outbound{
			Type: proto.OutboundTypeDocumentUpdate,
			Data: proto.EventDocumentUpdate{
				DocumentID: event.DocumentID,
				Content:    event.Content,
			},
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeNewMessage,
			Data: proto.EventNewMessage{
				DocumentID: event.Message.DocumentID,
				Message:    event.Message.Text,
				Sender:     event.Message.Sender,
				Timestamp:  event.Message.Timestamp.UTC().Format(timestampLayout),
			},
		}
	case core.EventDocumentJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeDocumentJoined,
			Data: proto.EventDocumentMembership{DocumentID: event.DocumentID},
		}
	case core.EventDocumentLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeDocumentLeft,
			Data: proto.EventDocumentMembership{DocumentID: event.DocumentID},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.NewError("unknown", "unknown error")
		}
		return proto.NewError(event.Error.Code, event.Error.Message)
	default:
		return proto.NewError("unknown", "unsupported event")
	}
}
