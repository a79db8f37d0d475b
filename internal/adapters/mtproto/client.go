// Package mtproto is the websocket client for the signaling gateway
// daemon. It speaks JSON frames: uuid-correlated request/response pairs
// plus server pushes, multiplexed over one connection.
package mtproto

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/config"
	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

const writeWait = 5 * time.Second

type pendingCall struct {
	result chan frame
}

type Client struct {
	conn *websocket.Conn
	cfg  config.GatewayConfig
	send chan []byte

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
	done    chan struct{}

	handlersMu sync.RWMutex
	handlers   []func(core.CallUpdate)
}

// Dial connects to the gateway and starts the read/write pumps. The
// connection lives until Close or a transport failure; either way all
// pending invokes fail with ErrGatewayClosed.
func Dial(ctx context.Context, cfg config.GatewayConfig) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(cfg.ReadLimit)

	c := &Client{
		conn:    conn,
		cfg:     cfg,
		send:    make(chan []byte, 32),
		pending: make(map[string]*pendingCall),
		done:    make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	log.Info().Str("module", "mtproto").Str("addr", cfg.Addr).Msg("gateway connected")
	return c, nil
}

func (c *Client) Close() {
	c.shutdown()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	for id, call := range c.pending {
		close(call.result)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
	log.Info().Str("module", "mtproto").Msg("gateway closed")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "mtproto").Msg("writePump set deadline")
				c.shutdown()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "mtproto").Msg("writePump write error")
				c.shutdown()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "mtproto").Msg("writePump ping error")
				c.shutdown()
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.shutdown()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Error().Err(err).Str("module", "mtproto").Msg("readPump read error")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error().Err(err).Str("module", "mtproto").Msg("bad frame")
		return
	}

	if f.ID == "" {
		if len(f.Update) > 0 {
			c.handleUpdate(f.Update)
		}
		return
	}

	c.mu.Lock()
	call, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()
	if !ok {
		log.Warn().Str("module", "mtproto").Str("id", f.ID).Msg("response for unknown request")
		return
	}
	call.result <- f
	close(call.result)
}

func (c *Client) handleUpdate(raw json.RawMessage) {
	var u wireUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		log.Error().Err(err).Str("module", "mtproto").Msg("bad update")
		return
	}
	if u.Type != "groupCall" {
		return
	}
	cu := core.CallUpdate{
		Chat:  domain.ChatID(u.ChatID),
		Phase: domain.CallPhase(u.State),
	}
	c.handlersMu.RLock()
	handlers := c.handlers
	c.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(cu)
	}
}

// OnCallUpdate implements core.SignalingGateway.
func (c *Client) OnCallUpdate(fn func(core.CallUpdate)) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, fn)
	c.handlersMu.Unlock()
}

func (c *Client) invoke(ctx context.Context, method string, params any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	id := uuid.NewString()
	call := &pendingCall{result: make(chan frame, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrGatewayClosed
	}
	c.pending[id] = call
	c.mu.Unlock()

	data, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		c.abandon(id)
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	select {
	case c.send <- data:
	case <-c.done:
		c.abandon(id)
		return core.ErrGatewayClosed
	case <-ctx.Done():
		c.abandon(id)
		return ctx.Err()
	}

	select {
	case f, ok := <-call.result:
		if !ok {
			return core.ErrGatewayClosed
		}
		if f.Error != nil {
			return fmt.Errorf("%s: %w", method, f.Error)
		}
		if result != nil && len(f.Result) > 0 {
			if err := json.Unmarshal(f.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.abandon(id)
		return ctx.Err()
	}
}

func (c *Client) abandon(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// ResolvePeer implements core.SignalingGateway.
func (c *Client) ResolvePeer(ctx context.Context, chat domain.ChatID) (domain.InputPeer, error) {
	var peer domain.InputPeer
	err := c.invoke(ctx, "contacts.resolvePeer", resolvePeerParams{ChatID: int64(chat)}, &peer)
	return peer, err
}

// FullChat implements core.SignalingGateway.
func (c *Client) FullChat(ctx context.Context, chat domain.ChatID) (*core.FullChat, error) {
	var res fullChatResult
	if err := c.invoke(ctx, "channels.getFullChannel", resolvePeerParams{ChatID: int64(chat)}, &res); err != nil {
		return nil, err
	}
	return &core.FullChat{Call: res.Call, DefaultJoinAs: res.DefaultJoinAs}, nil
}

// JoinCall implements core.SignalingGateway.
func (c *Client) JoinCall(ctx context.Context, req core.JoinRequest) ([]core.Update, error) {
	desc, err := json.Marshal(req.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal join descriptor: %w", err)
	}
	params := joinCallParams{
		Call:       req.Call,
		Params:     dataJSON{Data: string(desc)},
		JoinAs:     req.JoinAs,
		Muted:      req.Muted,
		InviteHash: req.InviteHash,
	}
	var res joinCallResult
	if err := c.invoke(ctx, "phone.joinGroupCall", params, &res); err != nil {
		return nil, err
	}

	updates := make([]core.Update, 0, len(res.Updates))
	for _, wu := range res.Updates {
		switch wu.Type {
		case "groupCallConnection":
			updates = append(updates, core.Update{Kind: core.UpdateCallConnection, Params: wu.Params})
		case "groupCall":
			updates = append(updates, core.Update{
				Kind: core.UpdateCallState,
				Call: &core.CallUpdate{Chat: domain.ChatID(wu.ChatID), Phase: domain.CallPhase(wu.State)},
			})
		}
	}
	return updates, nil
}

// LeaveCall implements core.SignalingGateway.
func (c *Client) LeaveCall(ctx context.Context, call domain.CallHandle, source uint32) error {
	return c.invoke(ctx, "phone.leaveGroupCall", leaveCallParams{Call: call, Source: source}, nil)
}

// EditParticipant implements core.SignalingGateway.
func (c *Client) EditParticipant(ctx context.Context, call domain.CallHandle, participant domain.InputPeer, req domain.EditRequest) error {
	params := editParticipantParams{Call: call, Participant: participant, Edit: req}
	return c.invoke(ctx, "phone.editGroupCallParticipant", params, nil)
}
