// Command ws_smoke drives two connections through a join, an edit and a chat
// message against a running server and fails if any relay is missing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wiredoc-server/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "bearer token, required when the server enforces ws auth")
	doc := flag.String("doc", "smoke-doc", "document id to join")
	content := flag.String("content", "hello from smoke test", "document content to relay")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var opts *websocket.DialOptions
	if *token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}}}
	}

	editor, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial editor: %w", err)
	}
	defer editor.Close(websocket.StatusNormalClosure, "bye")

	viewer, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial viewer: %w", err)
	}
	defer viewer.Close(websocket.StatusNormalClosure, "bye")

	for name, conn := range map[string]*websocket.Conn{"editor": editor, "viewer": viewer} {
		if err := send(ctx, conn, proto.InboundTypeJoinDocument, *doc); err != nil {
			return err
		}
		if _, err := expect(ctx, conn, proto.OutboundTypeDocumentJoined); err != nil {
			return fmt.Errorf("%s join: %w", name, err)
		}
	}

	if err := send(ctx, editor, proto.InboundTypeDocumentChange, proto.DocumentChangeData{DocumentID: *doc, Content: *content}); err != nil {
		return err
	}
	data, err := expect(ctx, viewer, proto.OutboundTypeDocumentUpdate)
	if err != nil {
		return fmt.Errorf("viewer update: %w", err)
	}
	fmt.Printf("viewer received document-update: %s\n", data)

	if err := send(ctx, editor, proto.InboundTypeChatMessage, proto.ChatMessageData{DocumentID: *doc, Message: "smoke chat", Sender: "smoke"}); err != nil {
		return err
	}
	for name, conn := range map[string]*websocket.Conn{"editor": editor, "viewer": viewer} {
		data, err := expect(ctx, conn, proto.OutboundTypeNewMessage)
		if err != nil {
			return fmt.Errorf("%s chat: %w", name, err)
		}
		fmt.Printf("%s received new-message: %s\n", name, data)
	}

	fmt.Println("smoke test passed")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func expect(ctx context.Context, conn *websocket.Conn, typ string) (json.RawMessage, error) {
	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if f.Type == proto.OutboundTypeError && f.Error != nil {
		return nil, fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Msg)
	}
	if f.Type != typ {
		return nil, fmt.Errorf("expected %s, got %s", typ, f.Type)
	}
	return f.Data, nil
}
