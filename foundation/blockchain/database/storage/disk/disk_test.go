package disk_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/database/storage/disk"
)

func Test_Buckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.db")

	d, err := disk.Open(path, "objects", "utxos")
	if err != nil {
		t.Fatalf("Should be able to open the file: %s", err)
	}

	objects := d.Bucket("objects")
	utxos := d.Bucket("utxos")

	if err := objects.Put("id", []byte("object")); err != nil {
		t.Fatalf("Should be able to put an object: %s", err)
	}

	exists, err := utxos.Exists("id")
	if err != nil {
		t.Fatalf("Should be able to check a key: %s", err)
	}
	if exists {
		t.Fatalf("Should keep buckets separate.")
	}

	if _, err := utxos.Get("id"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should get not found from the other bucket: %v", err)
	}

	if err := objects.Close(); err != nil {
		t.Fatalf("Should be able to close: %s", err)
	}
	if err := utxos.Close(); err != nil {
		t.Fatalf("Should be able to close twice: %s", err)
	}

	d, err = disk.Open(path, "objects", "utxos")
	if err != nil {
		t.Fatalf("Should be able to reopen the file: %s", err)
	}
	defer d.Close()

	v, err := d.Bucket("objects").Get("id")
	if err != nil {
		t.Fatalf("Should find the value after reopening: %s", err)
	}

	if string(v) != "object" {
		t.Logf("got: %s", v)
		t.Logf("exp: %s", "object")
		t.Fatalf("Should get back the stored value.")
	}
}
