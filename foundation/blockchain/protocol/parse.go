package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/marabu/node/foundation/blockchain/database"
)

// Reasons a frame is rejected.
var (
	ErrInvalidFormat  = errors.New("invalid format")
	ErrInvalidMessage = errors.New("invalid message")
)

// RejectError is returned by Parse. Reason is ErrInvalidFormat or
// ErrInvalidMessage.
type RejectError struct {
	Reason error
	Err    error
}

func reject(reason error, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (re *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", re.Reason, re.Err)
}

// Unwrap exposes both the reason and the cause to errors.Is.
func (re *RejectError) Unwrap() []error {
	return []error{re.Reason, re.Err}
}

// =============================================================================

var versionRE = regexp.MustCompile(`^0\.9\.[0-9]+$`)

// fields lists the keys each message type carries besides type.
var fields = map[string][]string{
	TypeHello:          {"version", "agent"},
	TypeGetPeers:       {},
	TypePeers:          {"peers"},
	TypeGetChainTip:    {},
	TypeChainTip:       {"blockid"},
	TypeGetChainLength: {},
	TypeChainLength:    {"chainlength"},
	TypeGetMempool:     {},
	TypeMempool:        {"txids"},
	TypeGetObject:      {"objectid"},
	TypeObject:         {"object"},
	TypeIHaveObject:    {"objectid"},
	TypeError:          {"name", "description"},
}

// Parser turns frames into messages for one network.
type Parser struct {
	target string
}

// NewParser constructs a parser that only accepts blocks with the target.
func NewParser(target string) Parser {
	return Parser{target: target}
}

// Parse decodes exactly one frame, without its newline, into a message.
func (p Parser) Parse(line []byte) (Message, error) {
	if !utf8.Valid(line) {
		return nil, reject(ErrInvalidFormat, "frame is not valid utf-8")
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, reject(ErrInvalidFormat, "decoding json: %s", err)
	}

	// Anything but whitespace after the value is a syntax error.
	if rest := bytes.TrimSpace(line[dec.InputOffset():]); len(rest) != 0 {
		return nil, reject(ErrInvalidFormat, "trailing data after json value")
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, reject(ErrInvalidMessage, "message is not a json object")
	}

	typ, ok := m["type"].(string)
	if !ok {
		return nil, reject(ErrInvalidMessage, "missing message type")
	}

	keys, known := fields[typ]
	if !known {
		return nil, reject(ErrInvalidFormat, "unknown message type %q", typ)
	}

	body := make(map[string]any, len(m))
	for k, v := range m {
		if k != "type" {
			body[k] = v
		}
	}

	for _, key := range keys {
		v, exists := body[key]
		if !exists || v == nil {
			return nil, reject(ErrInvalidFormat, "%s: missing field %q", typ, key)
		}
	}

	msg, err := p.message(typ, body)
	if err != nil {
		return nil, reject(ErrInvalidFormat, "%s: %w", typ, err)
	}

	return msg, nil
}

func (p Parser) message(typ string, body map[string]any) (Message, error) {
	switch typ {
	case TypeHello:
		var msg Hello
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		if !versionRE.MatchString(msg.Version) {
			return nil, fmt.Errorf("unsupported version %q", msg.Version)
		}
		return msg, nil

	case TypeGetPeers:
		return empty(body, GetPeers{})

	case TypePeers:
		var msg Peers
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		if msg.Peers == nil {
			msg.Peers = []string{}
		}
		return msg, nil

	case TypeGetChainTip:
		return empty(body, GetChainTip{})

	case TypeChainTip:
		var msg ChainTip
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeGetChainLength:
		return empty(body, GetChainLength{})

	case TypeChainLength:
		var msg ChainLength
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeGetMempool:
		return empty(body, GetMempool{})

	case TypeMempool:
		var msg Mempool
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeGetObject:
		var msg GetObject
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeIHaveObject:
		var msg IHaveObject
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeError:
		var msg Error
		if err := decode(body, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeObject:
		if len(body) != 1 {
			return nil, errors.New("unexpected fields")
		}

		obj, err := database.DecodeObject(body["object"])
		if err != nil {
			return nil, err
		}

		if b, ok := obj.(database.Block); ok && b.Target != p.target {
			return nil, fmt.Errorf("block target %s is not the network target", b.Target)
		}

		return Object{Object: obj}, nil
	}

	return nil, fmt.Errorf("unhandled message type %q", typ)
}

// decode applies an exact match decode of the message body.
func decode(body map[string]any, result any) error {
	return database.DecodeExact(body, result)
}

// empty accepts a message that carries nothing but its type.
func empty(body map[string]any, msg Message) (Message, error) {
	if len(body) != 0 {
		return nil, errors.New("unexpected fields")
	}
	return msg, nil
}
