package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
)

// WSChannel is a compute channel over one websocket connection. One trial is
// in flight at a time; Cancel may be sent concurrently.
type WSChannel struct {
	conn    *websocket.Conn
	callMu  sync.Mutex // one Simulate at a time
	writeMu sync.Mutex // protects writes to conn
}

var _ sim.ComputeChannel = (*WSChannel)(nil)

// DialWS connects to an engine's websocket endpoint, e.g. ws://host:8090/ws.
func DialWS(ctx context.Context, url string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewWSChannel(conn), nil
}

// NewWSChannel wraps an established connection.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	return &WSChannel{conn: conn}
}

// cancelGrace is how long Simulate waits for the engine to answer a cancel
// sent because the caller's context ended. A read that times out leaves the
// connection unusable.
const cancelGrace = 5 * time.Second

// Simulate sends the request and waits for its result. When ctx ends the
// engine is told to cancel and the context error is returned once it answers.
func (c *WSChannel) Simulate(ctx context.Context, req sim.TrialRequest) (sim.TrialResponse, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.write(Message{Type: TypeSimulate, Request: &req}); err != nil {
		return sim.TrialResponse{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now().Add(cancelGrace))
		c.Cancel()
	})
	defer func() {
		if !stop() {
			_ = c.conn.SetReadDeadline(time.Time{})
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return sim.TrialResponse{}, ctx.Err()
			}
			return sim.TrialResponse{}, fmt.Errorf("reading result: %w", err)
		}
		var msg Message
		if err := decodeStrict(data, &msg); err != nil {
			return sim.TrialResponse{}, err
		}
		switch msg.Type {
		case TypeResult:
			if ctx.Err() != nil {
				return sim.TrialResponse{}, ctx.Err()
			}
			if msg.Response == nil {
				return sim.TrialResponse{}, errors.New("result message without response")
			}
			if msg.Response.MonsterID != req.MonsterID || msg.Response.EntityID != req.EntityID {
				return sim.TrialResponse{}, fmt.Errorf("result for %s/%s does not match request %s/%s",
					msg.Response.EntityID, msg.Response.MonsterID, req.EntityID, req.MonsterID)
			}
			return *msg.Response, nil
		case TypeError:
			if ctx.Err() != nil {
				return sim.TrialResponse{}, ctx.Err()
			}
			return sim.TrialResponse{}, fmt.Errorf("engine: %s", msg.Error)
		default:
			logrus.Debugf("ws channel: ignoring %q message", msg.Type)
		}
	}
}

// Cancel asks the engine to abort the trial in flight. Errors are logged.
func (c *WSChannel) Cancel() {
	if err := c.write(Message{Type: TypeCancel}); err != nil {
		logrus.Warnf("ws channel: sending cancel: %v", err)
	}
}

// Close closes the connection.
func (c *WSChannel) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *WSChannel) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing %s message: %w", msg.Type, err)
	}
	return nil
}
