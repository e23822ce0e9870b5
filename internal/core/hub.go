package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}

type envelope struct {
	client *Client
	cmd    *Command
}

type commandHandler func(c *Client, cmd *Command)

// Hub is the relay engine. A single Run loop owns the session store and
// processes every registration, join, leave and relay to completion before
// starting the next one.
type Hub struct {
	sessions *Sessions
	clients  map[string]*Client
	handlers map[CommandKind]commandHandler

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	stats      chan chan Stats
	done       chan struct{}

	now func() time.Time
	log *zerolog.Logger
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		sessions:   NewSessions(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		stats:      make(chan chan Stats),
		done:       make(chan struct{}),
		now:        time.Now,
		log:        logger,
	}
	h.handlers = map[CommandKind]commandHandler{
		CommandJoinDocument:   h.handleJoin,
		CommandLeaveDocument:  h.handleLeave,
		CommandDocumentChange: h.handleChange,
		CommandChatMessage:    h.handleChat,
	}
	return h
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case env := <-h.inbox:
			h.dispatch(env)
		case reply := <-h.stats:
			reply <- Stats{Clients: len(h.clients), Rooms: h.sessions.RoomCount()}
		}
	}
}

// RegisterClient attaches a connected client to the hub. It returns
// ErrHubStopped once the loop has exited.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// UnregisterClient detaches a client and removes it from every room.
// Safe to call more than once and after the hub has stopped.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stats returns live client and room counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	if _, exists := h.clients[c.ID]; exists {
		h.log.Warn().Str("client_id", c.ID).Msg("duplicate client registration ignored")
		return
	}
	h.clients[c.ID] = c
	go h.pump(ctx, c)
	h.log.Debug().Str("client_id", c.ID).Str("name", c.Name).Msg("client connected")
}

// pump forwards a client's commands into the hub inbox, preserving their order.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	if current, ok := h.clients[c.ID]; !ok || current != c {
		return
	}
	rooms := h.sessions.RemoveConnectionEverywhere(c.ID)
	delete(h.clients, c.ID)
	close(c.done)
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Strs("rooms", rooms).Msg("client disconnected")
}

func (h *Hub) shutdown() {
	for _, c := range h.clients {
		h.removeClient(c)
	}
}

func (h *Hub) dispatch(env envelope) {
	// The client may have disconnected while its command was queued.
	if current, ok := h.clients[env.client.ID]; !ok || current != env.client {
		return
	}
	handler, ok := h.handlers[env.cmd.Kind]
	if !ok {
		h.sendError(env.client, ErrCodeUnknownEvent, "unknown command")
		return
	}
	handler(env.client, env.cmd)
}

func (h *Hub) handleJoin(c *Client, cmd *Command) {
	if cmd.DocumentID == "" {
		h.sendError(c, ErrCodeBadRequest, "documentId is required")
		return
	}
	h.sessions.Join(cmd.DocumentID, c.ID)
	h.deliver(c, &Event{Kind: EventDocumentJoined, DocumentID: cmd.DocumentID})
}

func (h *Hub) handleLeave(c *Client, cmd *Command) {
	if !h.sessions.Leave(cmd.DocumentID, c.ID) {
		h.sendError(c, ErrCodeNotInRoom, "not joined to document")
		return
	}
	h.deliver(c, &Event{Kind: EventDocumentLeft, DocumentID: cmd.DocumentID})
}

func (h *Hub) handleChange(c *Client, cmd *Command) {
	if !h.sessions.IsMember(cmd.DocumentID, c.ID) {
		h.sendError(c, ErrCodeNotInRoom, "join the document before editing")
		return
	}
	h.relayEdit(Edit{DocumentID: cmd.DocumentID, Content: cmd.Content, Origin: c.ID})
}

func (h *Hub) handleChat(c *Client, cmd *Command) {
	if !h.sessions.IsMember(cmd.DocumentID, c.ID) {
		h.sendError(c, ErrCodeNotInRoom, "join the document before chatting")
		return
	}
	msg := cmd.Message
	msg.DocumentID = cmd.DocumentID
	if msg.Sender == "" {
		msg.Sender = c.Name
	}
	h.relayChat(msg)
}

// relayEdit forwards an edit to every room member except its origin and
// returns the number of recipients it reached.
func (h *Hub) relayEdit(edit Edit) int {
	ev := &Event{Kind: EventDocumentUpdate, DocumentID: edit.DocumentID, Content: edit.Content}

	delivered := 0
	for _, id := range h.sessions.MembersOf(edit.DocumentID) {
		if id == edit.Origin {
			continue
		}
		if c, ok := h.clients[id]; ok && h.deliver(c, ev) {
			delivered++
		}
	}
	return delivered
}

// relayChat stamps the message with server time and forwards it to every
// room member, sender included.
func (h *Hub) relayChat(msg ChatMessage) int {
	msg.Timestamp = h.now().UTC()
	ev := &Event{Kind: EventNewMessage, DocumentID: msg.DocumentID, Message: msg}

	delivered := 0
	for _, id := range h.sessions.MembersOf(msg.DocumentID) {
		if c, ok := h.clients[id]; ok && h.deliver(c, ev) {
			delivered++
		}
	}
	return delivered
}

// deliver enqueues without blocking. A client whose buffer is full is evicted
// so one slow reader cannot stall the room.
func (h *Hub) deliver(c *Client, ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		h.log.Warn().Str("client_id", c.ID).Str("document_id", ev.DocumentID).Msg("client buffer full, evicting")
		h.removeClient(c)
		return false
	}
}

func (h *Hub) sendError(c *Client, code, msg string) {
	h.deliver(c, &Event{Kind: EventError, Error: coreError(code, msg)})
}
