package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/corelite/sqlite/sqliteh"
)

func TestBackup(t *testing.T) {
	src := openUsers(t)
	mustExec(t, src, "CREATE TABLE blobs (b BLOB)")
	for range 20 {
		mustExec(t, src, "INSERT INTO blobs VALUES (randomblob(4096))")
	}
	dst, err := Open(filepath.Join(t.TempDir(), "copy.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer dst.Close()

	b, err := NewBackup(dst, "main", src, "main")
	if err != nil {
		t.Fatal(err)
	}
	steps := 0
	for {
		more, remaining, pageCount, err := b.Step(5)
		if err != nil {
			t.Fatal(err)
		}
		steps++
		if remaining > pageCount {
			t.Errorf("remaining=%d > pageCount=%d", remaining, pageCount)
		}
		if !more {
			break
		}
	}
	if err := b.Finish(); err != nil {
		t.Fatal(err)
	}
	if steps < 2 {
		t.Errorf("steps=%d, want an incremental copy", steps)
	}

	if ok, err := dst.HasValue("users", "name", "Alice"); err != nil || !ok {
		t.Errorf("HasValue=%v, %v after backup", ok, err)
	}
	s := mustPrepare(t, dst, "SELECT count(*) FROM blobs")
	row, err := s.Cursor().TryNext()
	if err != nil {
		t.Fatal(err)
	}
	if got := Read[int](row, 0); got != 20 {
		t.Errorf("count=%d, want 20", got)
	}
}

func TestBackupUnknownSchema(t *testing.T) {
	src := openUsers(t)
	dst := openMem(t)
	_, err := NewBackup(dst, "main", src, "nope")
	if err == nil {
		t.Fatal("no error backing up a missing schema")
	}
}

func TestCloseFinishesBackup(t *testing.T) {
	src := openUsers(t)
	dst := openMem(t)
	b, err := NewBackup(dst, "main", src, "main")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := b.Step(1); err != nil {
		t.Fatal(err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close with a live backup: %v", err)
	}
	if _, _, _, err := b.Step(1); !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_MISUSE)) {
		t.Errorf("Step after Close = %v, want misuse", err)
	}
	if err := b.Finish(); err != nil {
		t.Errorf("Finish after Close = %v", err)
	}
	if err := dst.Execute("CREATE TABLE after (x)"); err != nil {
		t.Errorf("destination unusable: %v", err)
	}
	if _, err := NewBackup(dst, "main", src, "main"); !errors.Is(err, ErrClosed) {
		t.Errorf("NewBackup from a closed Conn = %v, want ErrClosed", err)
	}
}
