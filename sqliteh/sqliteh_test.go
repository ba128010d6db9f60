package sqliteh

import (
	"errors"
	"testing"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{SQLITE_BUSY, "SQLITE_BUSY"},
		{SQLITE_CONSTRAINT_UNIQUE, "SQLITE_CONSTRAINT_UNIQUE"},
		{SQLITE_DONE, "SQLITE_DONE(not an error)"},
		{Code(9999), "SQLITE_UNKNOWN_ERR(9999)"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String()=%q, want %q", int(tt.code), got, tt.want)
		}
	}
}

func TestCodeAsError(t *testing.T) {
	for _, code := range []Code{SQLITE_OK, SQLITE_ROW, SQLITE_DONE} {
		if err := CodeAsError(code); err != nil {
			t.Errorf("CodeAsError(%v)=%v, want nil", code, err)
		}
	}
	err := CodeAsError(SQLITE_BUSY_SNAPSHOT)
	if err != ErrCode(SQLITE_BUSY_SNAPSHOT) {
		t.Fatalf("CodeAsError=%v, want SQLITE_BUSY_SNAPSHOT", err)
	}
	if !errors.Is(err, ErrCode(SQLITE_BUSY)) {
		t.Errorf("%v is not SQLITE_BUSY", err)
	}
	if errors.Is(err, ErrCode(SQLITE_BUSY_RECOVERY)) {
		t.Errorf("%v matched a sibling extended code", err)
	}
	if errors.Is(CodeAsError(SQLITE_BUSY), ErrCode(SQLITE_BUSY_SNAPSHOT)) {
		t.Errorf("primary code matched an extended target")
	}
	if got := CodeAsError(Code(4242)); got != ErrCode(4242) {
		t.Errorf("unknown code: %v", got)
	}
}

func TestPrimary(t *testing.T) {
	if got := SQLITE_IOERR_SHORT_READ.Primary(); got != SQLITE_IOERR {
		t.Errorf("Primary=%v, want SQLITE_IOERR", got)
	}
	if SQLITE_IOERR.IsExtended() {
		t.Error("SQLITE_IOERR reported as extended")
	}
}

func TestOpenFlagsString(t *testing.T) {
	flags := SQLITE_OPEN_CREATE | SQLITE_OPEN_READWRITE | SQLITE_OPEN_FULLMUTEX | 0x40000000
	const want = "SQLITE_OPEN_READWRITE|SQLITE_OPEN_CREATE|SQLITE_OPEN_FULLMUTEX|UNKNOWN_FLAG:1073741824"
	if got := flags.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := OpenFlags(0).String(); got != "" {
		t.Errorf("zero flags: %q", got)
	}
}
