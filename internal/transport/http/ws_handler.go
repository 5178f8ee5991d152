package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/chatspace/chatspace-server/internal/admission"
	"github.com/chatspace/chatspace-server/internal/core"
	"github.com/chatspace/chatspace-server/internal/proto"
	"github.com/chatspace/chatspace-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
// The room and the client identity are resolved here, before any event
// reaches the coordinator.
type WSHandler struct {
	coord     *core.Coordinator
	tokenCfg  *admission.TokenConfig
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds the WebSocket handler.
func NewWSHandler(coord *core.Coordinator, tokenCfg *admission.TokenConfig, rateLimit int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{coord: coord, tokenCfg: tokenCfg, rateLimit: rateLimit, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		stdhttp.Error(w, "room is required", stdhttp.StatusBadRequest)
		return
	}

	claims, err := admission.ValidateToken(h.tokenCfg, r.URL.Query().Get("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		stdhttp.Error(w, "invalid session token", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(claims.CID, claims.Nickname, utils.RandomColor())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The connection enters the room through the admission gate; a
	// password-gated room answers with a private-channel notice and the
	// client retries with join_private.
	h.coord.Subscribe(ctx, room, client, "")
	defer h.coord.Unsubscribe(room, client)

	limiter := newRateLimiter(h.rateLimit)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, room, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("cid", client.CID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, room string, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "rate_limited", Msg: "slow down"},
			}); err != nil {
				return err
			}
			continue
		}

		in, protoErr, err := inboundToEvent(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("cid", client.CID).Msg("failed to decode inbound")
			return err
		}
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); err != nil {
				return err
			}
			continue
		}

		// Each event is an independent unit of work; slow store calls or
		// credential derivation never stall the read loop.
		go h.coord.Dispatch(ctx, room, client, *in)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
