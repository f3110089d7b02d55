package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// memberSource is the registry surface the dispatcher needs
type memberSource interface {
	Members(roomID string) []*Connection
	Prune(roomID string, c *Connection, cause error)
}

// Dispatcher fans engine output out to a room's connections. Each frame is
// encoded at most once per encoding; a connection whose send fails is pruned
// immediately.
type Dispatcher struct {
	members memberSource
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher reading membership from members
func NewDispatcher(members memberSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{members: members, logger: logger}
}

// frame lazily holds the JSON and msgpack encodings of one message
type frame struct {
	msg  any
	text []byte
	bin  []byte
	err  error
}

func (f *frame) json() ([]byte, error) {
	if f.text == nil && f.err == nil {
		f.text, f.err = json.Marshal(f.msg)
	}
	return f.text, f.err
}

func (f *frame) msgpack() ([]byte, error) {
	if f.bin == nil && f.err == nil {
		f.bin, f.err = msgpack.Marshal(f.msg)
	}
	return f.bin, f.err
}

// BroadcastState sends one gameState frame to every member of roomID
func (d *Dispatcher) BroadcastState(roomID string, s Snapshot) {
	conns := d.members.Members(roomID)
	if len(conns) == 0 {
		return
	}
	d.fanOut(roomID, conns, NewGameStateMsg(s))
}

// BroadcastEnd sends the gameEnd frame for o
func (d *Dispatcher) BroadcastEnd(roomID string, o MatchOutcome) {
	conns := d.members.Members(roomID)
	if len(conns) == 0 {
		return
	}
	msg := GameEndMsg{
		Type:      MsgGameEnd,
		Winner:    o.Winner,
		Score:     o.Score,
		Timestamp: unixMillis(o.EndedAt),
	}
	if o.Aborted {
		msg.Reason = "fault"
	}
	d.fanOut(roomID, conns, msg)
}

// SendTo delivers msg to a single connection
func (d *Dispatcher) SendTo(roomID string, c *Connection, msg any) {
	d.fanOut(roomID, []*Connection{c}, msg)
}

func (d *Dispatcher) fanOut(roomID string, conns []*Connection, msg any) {
	f := &frame{msg: msg}
	for _, c := range conns {
		if err := d.send(c, f); err != nil {
			if f.err != nil {
				d.logger.Error("encode frame", "room_id", roomID, "error", err)
				return
			}
			d.members.Prune(roomID, c, err)
		}
	}
}

func (d *Dispatcher) send(c *Connection, f *frame) error {
	if !c.Transport.Open() {
		return fmt.Errorf("%w: transport closed", ErrSendFailure)
	}
	if c.Binary {
		data, err := f.msgpack()
		if err != nil {
			return err
		}
		return c.Transport.SendBinary(data)
	}
	data, err := f.json()
	if err != nil {
		return err
	}
	return c.Transport.SendText(data)
}
