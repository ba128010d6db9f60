package sqlite

import (
	"errors"
	"testing"

	"github.com/corelite/sqlite/sqliteh"
)

func TestSerialize(t *testing.T) {
	src := openUsers(t)
	data, err := src.Serialize("")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || string(data[:16]) != "SQLite format 3\x00" {
		t.Fatalf("Serialize returned %d bytes without a database header", len(data))
	}

	dst := openMem(t)
	if err := dst.DeserializeReadOnly("main", data); err != nil {
		t.Fatal(err)
	}
	// The image is a copy.
	clear(data)
	if ok, err := dst.HasValue("users", "name", "Alice"); err != nil || !ok {
		t.Errorf("HasValue=%v, %v after deserialize", ok, err)
	}
	err = dst.Execute("INSERT INTO users (id) VALUES (2)")
	if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_READONLY)) {
		t.Errorf("insert into deserialized image: %v, want SQLITE_READONLY", err)
	}
}

func TestSerializeEmpty(t *testing.T) {
	c := openMem(t)
	data, err := c.Serialize("main")
	if err != nil {
		t.Fatal(err)
	}
	if data == nil {
		t.Error("empty database serialized as nil")
	}
	if _, err := c.Serialize("nope"); err == nil {
		t.Error("Serialize of a missing schema: no error")
	}
}
