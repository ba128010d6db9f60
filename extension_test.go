package sqlite

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadExtension(t *testing.T) {
	c := openMem(t)
	missing := filepath.Join(t.TempDir(), "missing_ext")

	if err := c.LoadExtension(missing); err == nil {
		t.Fatal("LoadExtension while disabled: no error")
	}
	if err := c.EnableExtensions(); err != nil {
		t.Fatal(err)
	}
	err := c.LoadExtension(missing)
	if err == nil {
		t.Fatal("LoadExtension of a missing file: no error")
	}
	if !strings.Contains(err.Error(), "missing_ext") {
		t.Errorf("err=%v, want the library name in the message", err)
	}
	if err := c.DisableExtensions(); err != nil {
		t.Fatal(err)
	}
}
