package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"slices"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredoc-server/internal/auth"
	"github.com/vovakirdan/wiredoc-server/internal/core"
	"github.com/vovakirdan/wiredoc-server/internal/proto"
)

// Close frame reasons are capped at 123 bytes by the protocol.
const maxCloseReason = 120

var errClientReleased = errors.New("client released by hub")

// WSOptions tunes the WebSocket endpoint.
type WSOptions struct {
	AuthRequired       bool
	MaxMessageBytes    int64
	ClientBuffer       int
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub    Hub
	auth   *auth.Service
	opts   WSOptions
	accept *websocket.AcceptOptions
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. authService may be nil when
// connections are always anonymous.
func NewWSHandler(hub Hub, authService *auth.Service, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:    hub,
		auth:   authService,
		opts:   opts,
		accept: acceptOptions(opts.AllowedOrigins),
		log:    logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	name, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(ulid.Make().String(), name, h.opts.ClientBuffer)
	if err := h.hub.RegisterClient(client); err != nil {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws client not registered")
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	h.log.Info().Str("client_id", client.ID).Str("name", client.Name).Msg("ws client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	status, reason := closeStatus(err)
	if errors.Is(err, errClientReleased) {
		// The close frame must go out before cancel aborts the pending read.
		conn.Close(status, reason)
	}
	cancel() // stop the other goroutine
	<-errCh

	if status == websocket.StatusInternalError {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	} else {
		h.log.Info().Str("client_id", client.ID).Msg("ws client disconnected")
	}

	conn.Close(status, reason)
}

// authenticate resolves the display name from an optional bearer token taken
// from the Authorization header or the token query parameter.
func (h *WSHandler) authenticate(r *stdhttp.Request) (string, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		if h.opts.AuthRequired {
			return "", errors.New("missing token")
		}
		return "", nil
	}
	if h.auth == nil {
		return "", errors.New("token auth not configured")
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Debug().Str("client_id", client.ID).Msg("ws frame rate limited")
			if err := wsjson.Write(ctx, conn, proto.NewError(core.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		if typ != websocket.MessageText {
			if err := wsjson.Write(ctx, conn, proto.NewError(core.ErrCodeBadRequest, "text frames only")); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("malformed ws frame")
			if err := wsjson.Write(ctx, conn, proto.NewError(core.ErrCodeBadRequest, "malformed frame")); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			h.log.Debug().Str("client_id", client.ID).Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected ws frame")
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errClientReleased
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return errClientReleased
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// closeStatus maps the error that ended a connection to a close frame.
func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errClientReleased):
		return websocket.StatusGoingAway, "released"
	}

	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return s, "message too big"
	}
	reason := err.Error()
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	return websocket.StatusInternalError, reason
}

func acceptOptions(origins []string) *websocket.AcceptOptions {
	if slices.Contains(origins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}

	// coder/websocket matches patterns against the origin host only.
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
