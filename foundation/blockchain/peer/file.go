package peer

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoFile is returned when no peers file was configured.
var ErrNoFile = errors.New("no peers file")

// document is the layout of the peers file.
type document struct {
	Peers []string `json:"peers"`
}

// Load reads the peers file. A file that does not exist yet is an empty list.
func Load(path string) ([]Peer, error) {
	if path == "" {
		return nil, ErrNoFile
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(doc.Peers))
	for _, host := range doc.Peers {
		if ValidateAddress(host) == nil {
			peers = append(peers, New(host))
		}
	}

	return peers, nil
}

// Save writes the peers file, replacing it atomically.
func Save(path string, peers []Peer) error {
	if path == "" {
		return ErrNoFile
	}

	doc := document{Peers: make([]string, len(peers))}
	for i, p := range peers {
		doc.Peers[i] = p.Host
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
