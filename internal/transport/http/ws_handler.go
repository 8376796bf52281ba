package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/metrics"
	"github.com/vovakirdan/studyhub-server/internal/proto"
)

var errConnDropped = errors.New("connection dropped by server")

// WSOptions tunes per-connection limits.
type WSOptions struct {
	MaxMessageBytes int64
	SendBuffer      int
	WriteTimeout    time.Duration
	PerSecond       float64
	Burst           int
}

// WSHandler upgrades HTTP connections and bridges them to core.Conn.
type WSHandler struct {
	hub  *core.Hub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewConn(h.opts.SendBuffer)
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()
	h.log.Info().Str("conn_id", client.ID).Str("remote", r.RemoteAddr).Msg("connection opened")

	// Cleanup must still reach the store after the request context ends.
	defer h.hub.Disconnect(context.WithoutCancel(r.Context()), client)

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
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	case errors.Is(err, errConnDropped):
		status = websocket.StatusPolicyViolation
		reason = err.Error()
	default:
		if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			break
		}
		status = websocket.StatusInternalError
		reason = "internal error"
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	limiter := newRateLimiter(h.opts.PerSecond, h.opts.Burst)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			metrics.RecordInbound("rate_limited")
			h.hub.Reject(ctx, client, &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages"})
			continue
		}

		if typ != websocket.MessageText {
			metrics.RecordInbound("invalid")
			h.hub.Reject(ctx, client, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "expected a text frame"})
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			metrics.RecordInbound("invalid")
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("malformed ws frame")
			h.hub.Reject(ctx, client, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "malformed json"})
			continue
		}

		cmd, protoErr := inboundToCommand(&inbound)
		if protoErr != nil {
			metrics.RecordInbound("invalid")
			h.hub.Reject(ctx, client, &core.CoreError{Code: protoErr.Code, Message: protoErr.Msg})
			continue
		}

		metrics.RecordInbound(inbound.Type)
		h.hub.Handle(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	for {
		select {
		case event := <-client.Events():
			if err := h.write(ctx, conn, event); err != nil {
				metrics.RecordDeliveryFailure(metrics.ReasonWrite)
				h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			h.flush(ctx, conn, client)
			return errConnDropped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, event *core.Event) error {
	wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, outboundFromEvent(event))
}

// flush writes whatever is already queued before the socket is closed.
func (h *WSHandler) flush(ctx context.Context, conn *websocket.Conn, client *core.Conn) {
	for {
		select {
		case event := <-client.Events():
			if err := h.write(ctx, conn, event); err != nil {
				return
			}
		default:
			return
		}
	}
}
