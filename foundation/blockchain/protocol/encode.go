package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/marabu/node/foundation/blockchain/canonical"
)

// Encode returns the canonical bytes of the message, without the newline
// the transport appends.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Peers:
		if m.Peers == nil {
			m.Peers = []string{}
		}
		msg = m

	case Mempool:
		if m.TxIDs == nil {
			m.TxIDs = []string{}
		}
		msg = m
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}
	body["type"] = msg.Type()

	return canonical.Encode(body)
}
