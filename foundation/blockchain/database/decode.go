package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/marabu/node/foundation/validate"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidObject is returned when a value does not match any object schema.
var ErrInvalidObject = errors.New("invalid object")

// schema describes the keys an object level must carry. Only keys listed as
// nullable may hold a JSON null.
type schema struct {
	required []string
	optional []string
	nullable []string
}

var (
	blockSchema = schema{
		required: []string{"type", "txids", "nonce", "previd", "created", "T"},
		optional: []string{"miner", "note", "studentids"},
		nullable: []string{"previd"},
	}
	transactionSchema = schema{required: []string{"type", "inputs", "outputs"}}
	coinbaseSchema    = schema{required: []string{"type", "height", "outputs"}}
	inputSchema       = schema{required: []string{"outpoint", "sig"}}
	outpointSchema    = schema{required: []string{"txid", "index"}}
	outputSchema      = schema{required: []string{"pubkey", "value"}}
)

func (s schema) check(m map[string]any) error {
	for _, key := range s.required {
		v, exists := m[key]
		if !exists {
			return fmt.Errorf("missing field %q", key)
		}
		if v == nil && !s.isNullable(key) {
			return fmt.Errorf("field %q is null", key)
		}
	}

	for _, key := range s.optional {
		if v, exists := m[key]; exists && v == nil {
			return fmt.Errorf("field %q is null", key)
		}
	}

	return nil
}

func (s schema) isNullable(key string) bool {
	for _, k := range s.nullable {
		if k == key {
			return true
		}
	}
	return false
}

// =============================================================================

// ParseObject decodes JSON bytes into an object. Numbers are kept exact.
func ParseObject(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidObject, err)
	}

	return DecodeObject(raw)
}

// DecodeObject classifies a generic JSON value, decoded with UseNumber, as a
// Block, Transaction or Coinbase. Unknown keys, missing keys and values
// outside the allowed formats are rejected.
func DecodeObject(raw any) (Object, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: object is not a JSON object", ErrInvalidObject)
	}

	typ, ok := m["type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing object type", ErrInvalidObject)
	}

	var obj Object
	var err error

	switch typ {
	case TypeBlock:
		obj, err = decodeBlock(m)

	case TypeTransaction:
		if _, exists := m["height"]; exists {
			obj, err = decodeCoinbase(m)
		} else {
			obj, err = decodeTransaction(m)
		}

	default:
		err = fmt.Errorf("unknown object type %q", typ)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidObject, err)
	}

	return obj, nil
}

func decodeBlock(m map[string]any) (Block, error) {
	if err := blockSchema.check(m); err != nil {
		return Block{}, err
	}

	var b Block
	if err := DecodeExact(m, &b); err != nil {
		return Block{}, err
	}

	if b.TxIDs == nil {
		b.TxIDs = []string{}
	}

	return b, nil
}

func decodeTransaction(m map[string]any) (Transaction, error) {
	if err := transactionSchema.check(m); err != nil {
		return Transaction{}, err
	}

	inputs, ok := m["inputs"].([]any)
	if !ok {
		return Transaction{}, errors.New("inputs is not an array")
	}

	for i, in := range inputs {
		im, ok := in.(map[string]any)
		if !ok {
			return Transaction{}, fmt.Errorf("input %d is not an object", i)
		}
		if err := inputSchema.check(im); err != nil {
			return Transaction{}, fmt.Errorf("input %d: %w", i, err)
		}
		om, ok := im["outpoint"].(map[string]any)
		if !ok {
			return Transaction{}, fmt.Errorf("input %d: outpoint is not an object", i)
		}
		if err := outpointSchema.check(om); err != nil {
			return Transaction{}, fmt.Errorf("input %d: outpoint: %w", i, err)
		}
	}

	if err := checkOutputs(m["outputs"]); err != nil {
		return Transaction{}, err
	}

	var tx Transaction
	if err := DecodeExact(m, &tx); err != nil {
		return Transaction{}, err
	}

	if tx.Inputs == nil {
		tx.Inputs = []Input{}
	}
	if tx.Outputs == nil {
		tx.Outputs = []Output{}
	}

	return tx, nil
}

func decodeCoinbase(m map[string]any) (Coinbase, error) {
	if err := coinbaseSchema.check(m); err != nil {
		return Coinbase{}, err
	}

	if err := checkOutputs(m["outputs"]); err != nil {
		return Coinbase{}, err
	}

	var cb Coinbase
	if err := DecodeExact(m, &cb); err != nil {
		return Coinbase{}, err
	}

	return cb, nil
}

func checkOutputs(v any) error {
	outputs, ok := v.([]any)
	if !ok {
		return errors.New("outputs is not an array")
	}

	for i, out := range outputs {
		om, ok := out.(map[string]any)
		if !ok {
			return fmt.Errorf("output %d is not an object", i)
		}
		if err := outputSchema.check(om); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}

	return nil
}

// DecodeExact copies a generic JSON object, decoded with UseNumber, into the
// struct pointed to by result. Keys must match json tags exactly and every
// key must be used. The validate tags of the result are applied last.
func DecodeExact(m map[string]any, result any) error {
	cfg := mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  rejectNumberAsString,
		MatchName:   func(mapKey, fieldName string) bool { return mapKey == fieldName },
		Result:      result,
	}

	dec, err := mapstructure.NewDecoder(&cfg)
	if err != nil {
		return err
	}

	if err := dec.Decode(m); err != nil {
		return err
	}

	return validate.Check(result)
}

// rejectNumberAsString stops a JSON number from being accepted where the
// schema requires a string. json.Number is itself a string kind.
func rejectNumberAsString(from reflect.Type, to reflect.Type, data any) (any, error) {
	if _, ok := data.(json.Number); ok && to.Kind() == reflect.String {
		return nil, errors.New("expected string, got number")
	}
	return data, nil
}
