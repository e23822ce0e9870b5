package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestHubEditReachesPeersButNotOrigin(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	joinAndWait(t, alice, "doc1")
	joinAndWait(t, bob, "doc1")

	alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: "hello"}

	ev := mustEvent(t, bob.Events, EventDocumentUpdate)
	if ev.DocumentID != "doc1" || ev.Content != "hello" {
		t.Fatalf("unexpected update: %+v", ev)
	}
	mustNoEvent(t, alice.Events, 100*time.Millisecond)
}

func TestHubChatEchoesToSenderWithServerTimestamp(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub := NewHub(nil)
	hub.now = func() time.Time { return fixed }
	go hub.Run(ctx)

	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	joinAndWait(t, alice, "doc1")
	joinAndWait(t, bob, "doc1")

	alice.Commands <- &Command{
		Kind:       CommandChatMessage,
		DocumentID: "doc1",
		Message: ChatMessage{
			Text:      "hi",
			Sender:    "A",
			Timestamp: time.Unix(0, 0),
		},
	}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventNewMessage)
		if ev.Message.Text != "hi" || ev.Message.Sender != "A" || ev.Message.DocumentID != "doc1" {
			t.Fatalf("%s got unexpected message: %+v", c.Name, ev.Message)
		}
		if !ev.Message.Timestamp.Equal(fixed) || ev.Message.Timestamp.Location() != time.UTC {
			t.Fatalf("%s got timestamp %v, want server time %v in UTC", c.Name, ev.Message.Timestamp, fixed)
		}
	}
}

func TestHubChatFallsBackToClientName(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	hub.RegisterClient(alice)
	joinAndWait(t, alice, "doc1")

	alice.Commands <- &Command{Kind: CommandChatMessage, DocumentID: "doc1", Message: ChatMessage{Text: "solo"}}
	ev := mustEvent(t, alice.Events, EventNewMessage)
	if ev.Message.Sender != "alice" {
		t.Fatalf("sender = %q, want alice", ev.Message.Sender)
	}
}

func TestHubEditInEmptyRoomIsNoop(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	hub.RegisterClient(alice)
	joinAndWait(t, alice, "doc1")

	alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: "x"}
	mustNoEvent(t, alice.Events, 100*time.Millisecond)

	stats, err := hub.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Clients != 1 || stats.Rooms != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHubRelayWithoutJoinProducesError(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	joinAndWait(t, bob, "doc1")

	alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: "sneaky"}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room error, got %+v", ev)
	}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	joinAndWait(t, alice, "doc1")
	joinAndWait(t, bob, "doc1")

	bob.Commands <- &Command{Kind: CommandLeaveDocument, DocumentID: "doc1"}
	mustEvent(t, bob.Events, EventDocumentLeft)

	alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: "after"}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)

	bob.Commands <- &Command{Kind: CommandLeaveDocument, DocumentID: "doc1"}
	ev := mustEvent(t, bob.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room error, got %+v", ev)
	}
}

func TestHubDisconnectRemovesFromEveryRoom(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	for _, doc := range []string{"doc1", "doc2"} {
		joinAndWait(t, alice, doc)
		joinAndWait(t, bob, doc)
	}

	hub.UnregisterClient(alice)
	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("alice was not released")
	}
	if _, ok := <-alice.Events; ok {
		t.Fatalf("expected alice events channel to be closed")
	}

	// Relays to the remaining member must not hit the departed one.
	for _, doc := range []string{"doc1", "doc2"} {
		bob.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: doc, Content: "still here"}
	}
	bob.Commands <- &Command{Kind: CommandChatMessage, DocumentID: "doc1", Message: ChatMessage{Text: "ping"}}
	mustEvent(t, bob.Events, EventNewMessage)

	stats, err := hub.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Clients != 1 || stats.Rooms != 2 {
		t.Fatalf("unexpected stats after disconnect: %+v", stats)
	}

	// A second unregister is harmless.
	hub.UnregisterClient(alice)
}

func TestHubRelayDirectlyAfterDisconnect(t *testing.T) {
	hub := NewHub(nil)
	alice := NewClient("a", "alice", 0)
	bob := NewClient("b", "bob", 0)
	hub.clients[alice.ID] = alice
	hub.clients[bob.ID] = bob
	hub.sessions.Join("doc1", alice.ID)
	hub.sessions.Join("doc1", bob.ID)

	hub.removeClient(bob)

	if n := hub.relayEdit(Edit{DocumentID: "doc1", Content: "x", Origin: alice.ID}); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
	if n := hub.relayChat(ChatMessage{DocumentID: "doc1", Text: "x"}); n != 1 {
		t.Fatalf("expected chat echo to alice only, got %d", n)
	}
	if n := hub.relayEdit(Edit{DocumentID: "empty", Content: "x", Origin: alice.ID}); n != 0 {
		t.Fatalf("expected no deliveries to unknown room, got %d", n)
	}
}

func TestHubPreservesReceiptOrder(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 64)
	bob := NewClient("b", "bob", 64)
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	joinAndWait(t, alice, "doc1")
	joinAndWait(t, bob, "doc1")

	const n = 40
	for i := range n {
		alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: fmt.Sprintf("v%d", i)}
	}
	for i := range n {
		ev := mustEvent(t, bob.Events, EventDocumentUpdate)
		if want := fmt.Sprintf("v%d", i); ev.Content != want {
			t.Fatalf("update %d = %q, want %q", i, ev.Content, want)
		}
	}
}

func TestHubEvictsSlowConsumer(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 8)
	slow := NewClient("s", "slow", 1)
	hub.RegisterClient(alice)
	hub.RegisterClient(slow)
	joinAndWait(t, alice, "doc1")
	slow.Commands <- &Command{Kind: CommandJoinDocument, DocumentID: "doc1"}

	// slow never drains, so its single-slot buffer fills with the join ack.
	deadline := time.After(2 * time.Second)
	for {
		alice.Commands <- &Command{Kind: CommandDocumentChange, DocumentID: "doc1", Content: "x"}
		select {
		case <-slow.Done():
			return
		case <-deadline:
			t.Fatalf("slow consumer was not evicted")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHubJoinWithoutDocumentID(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice", 0)
	hub.RegisterClient(alice)
	alice.Commands <- &Command{Kind: CommandJoinDocument}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
}

func TestHubShutdownReleasesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	alice := NewClient("a", "alice", 0)
	hub.RegisterClient(alice)
	joinAndWait(t, alice, "doc1")

	cancel()
	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client not released on shutdown")
	}

	if _, err := hub.Stats(context.Background()); err != ErrHubStopped {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}
	if err := hub.RegisterClient(NewClient("late", "", 0)); err != ErrHubStopped {
		t.Fatalf("expected ErrHubStopped for late registration, got %v", err)
	}
	hub.UnregisterClient(alice)
}
