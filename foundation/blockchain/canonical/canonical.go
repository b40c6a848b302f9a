// Package canonical provides the canonical JSON encoding and content hashing
// used to identify every object on the network.
package canonical

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2s"
)

// Encode returns the RFC 8785 canonical JSON encoding of the value. Object
// keys are sorted by UTF-16 code units, there is no insignificant
// whitespace, strings carry only the mandatory escapes and numbers use the
// ECMAScript shortest form.
func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}

	out, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonical transform: %w", err)
	}

	return out, nil
}

// Hash returns the lowercase hex blake2s-256 digest of the canonical
// encoding of the value.
func Hash(value any) (string, error) {
	data, err := Encode(value)
	if err != nil {
		return "", err
	}

	return HashBytes(data), nil
}

// HashBytes returns the lowercase hex blake2s-256 digest of the data.
func HashBytes(data []byte) string {
	sum := blake2s.Sum256(data)
	return hex.EncodeToString(sum[:])
}
