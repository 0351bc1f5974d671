package agent

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// MessageType is the "type" discriminator of an agent message.
type MessageType string

// Server to agent.
const (
	TypeRegistered MessageType = "registered"
	TypePing       MessageType = "ping"
	TypePrintOrder MessageType = "print_order"
	TypeUnregister MessageType = "unregister"
)

// Agent to server.
const (
	TypeRegister      MessageType = "register"
	TypePong          MessageType = "pong"
	TypePrinted       MessageType = "printed"
	TypePrintFallback MessageType = "print_fallback"
	TypePrintSkipped  MessageType = "print_skipped"
	TypePrintFailed   MessageType = "print_failed"
)

// Message is a single WebSocket frame in either direction. Order holds the
// snapshot (or array of snapshots) verbatim.
type Message struct {
	Type     MessageType
	AgentKey string
	EventID  string
	OrderID  string
	Kind     string
	Reprint  bool
	Order    jx.Raw
	Outcome  string
	Error    string
}

// Encode writes m as a JSON object, omitting empty fields.
func (m Message) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(m.Type))
	str := func(name, v string) {
		if v == "" {
			return
		}
		e.FieldStart(name)
		e.Str(v)
	}
	str("agent_key", m.AgentKey)
	str("event_id", m.EventID)
	str("order_id", m.OrderID)
	str("kind", m.Kind)
	if m.Reprint {
		e.FieldStart("reprint")
		e.Bool(true)
	}
	if len(m.Order) > 0 {
		e.FieldStart("order")
		e.Raw(m.Order)
	}
	str("outcome", m.Outcome)
	str("error", m.Error)
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	m.Encode(&e)
	return e.Bytes(), nil
}

// DecodeMessage parses a frame. Unknown fields are ignored.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			v, err := optStr(d)
			m.Type = MessageType(v)
			return err
		case "agent_key":
			v, err := optStr(d)
			m.AgentKey = v
			return err
		case "event_id":
			v, err := optStr(d)
			m.EventID = v
			return err
		case "order_id":
			v, err := optStr(d)
			m.OrderID = v
			return err
		case "kind":
			v, err := optStr(d)
			m.Kind = v
			return err
		case "reprint":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Bool()
			m.Reprint = v
			return err
		case "order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			m.Order = append(jx.Raw(nil), raw...)
			return nil
		case "outcome":
			v, err := optStr(d)
			m.Outcome = v
			return err
		case "error":
			v, err := optStr(d)
			m.Error = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "decode message")
	}
	if m.Type == "" {
		return Message{}, errors.New("message type required")
	}
	return m, nil
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
