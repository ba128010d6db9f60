package sqlite

import (
	"errors"
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/corelite/sqlite/sqliteh"
	"github.com/google/go-cmp/cmp"
)

type level int8

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null},
		{IntegerValue(3), IntegerValue(3)},
		{"x", StringValue("x")},
		{7, IntegerValue(7)},
		{int64(math.MinInt64), IntegerValue(math.MinInt64)},
		{2.5, FloatValue(2.5)},
		{float32(0.5), FloatValue(0.5)},
		{true, IntegerValue(1)},
		{false, IntegerValue(0)},
		{[]byte("b"), BinaryValue([]byte("b"))},
		{[]byte(nil), BinaryValue(nil)},
		{level(-2), IntegerValue(-2)},
		{uint16(9), IntegerValue(9)},
		{netip.MustParseAddr("10.0.0.1"), StringValue("10.0.0.1")},
		{time.Date(2021, 6, 8, 11, 36, 0, 0, time.UTC), StringValue("2021-06-08 11:36")},
		{time.Date(2021, 6, 8, 11, 36, 52, 128e6, time.UTC), StringValue("2021-06-08 11:36:52.128")},
		{time.Date(2021, 6, 8, 11, 36, 52, 0, time.FixedZone("", -7*3600)), StringValue("2021-06-08 11:36:52.000-0700")},
	}
	for _, tt := range tests {
		got, err := ValueOf(tt.in)
		if err != nil {
			t.Errorf("ValueOf(%#v): %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ValueOf(%#v) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}

	for _, in := range []any{uint64(1), uint(1), struct{}{}, []int{1}} {
		_, err := ValueOf(in)
		var e *Error
		if !errors.As(err, &e) || e.Code != sqliteh.SQLITE_MISUSE {
			t.Errorf("ValueOf(%T): err=%v, want SQLITE_MISUSE", in, err)
		}
	}
}

func TestConvert(t *testing.T) {
	if got, err := Convert[int64](IntegerValue(5)); err != nil || got != 5 {
		t.Errorf("Convert[int64]=%v, %v", got, err)
	}
	if got, err := Convert[bool](IntegerValue(2)); err != nil || !got {
		t.Errorf("Convert[bool]=%v, %v", got, err)
	}
	if got, err := Convert[any](FloatValue(1.5)); err != nil || got != 1.5 {
		t.Errorf("Convert[any]=%v, %v", got, err)
	}
	if got, err := Convert[*int](Null); err != nil || got != nil {
		t.Errorf("Convert[*int](Null)=%v, %v", got, err)
	}
	if got, err := Convert[**int](IntegerValue(4)); err != nil || got == nil || *got == nil || **got != 4 {
		t.Errorf("Convert[**int]=%v, %v", got, err)
	}

	mismatches := []struct {
		name string
		conv func() error
	}{
		{"int from float", func() error { _, err := Convert[int](FloatValue(1)); return err }},
		{"float from int", func() error { _, err := Convert[float64](IntegerValue(1)); return err }},
		{"string from blob", func() error { _, err := Convert[string](BinaryValue([]byte("x"))); return err }},
		{"bytes from string", func() error { _, err := Convert[[]byte](StringValue("x")); return err }},
		{"string from null", func() error { _, err := Convert[string](Null); return err }},
		{"invalid utf-8", func() error { _, err := Convert[string](StringValue("\xff")); return err }},
		{"time from float", func() error { _, err := Convert[time.Time](FloatValue(1)); return err }},
		{"time from junk", func() error { _, err := Convert[time.Time](StringValue("yesterday")); return err }},
	}
	for _, tt := range mismatches {
		err := tt.conv()
		if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_MISMATCH)) {
			t.Errorf("%s: err=%v, want SQLITE_MISMATCH", tt.name, err)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null, "NULL"},
		{IntegerValue(-4), "-4"},
		{FloatValue(0.25), "0.25"},
		{StringValue("it's"), "'it''s'"},
		{BinaryValue([]byte{0x42, 0x69}), "x'4269'"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%v.String()=%q, want %q", tt.v.Type(), got, tt.want)
		}
	}
}

func TestValueRoundTrip(t *testing.T) {
	c := openMem(t)
	cur := mustPrepare(t, c, "SELECT ?").Cursor()
	for _, v := range []Value{
		Null,
		IntegerValue(math.MaxInt64),
		FloatValue(-0.5),
		StringValue(""),
		StringValue("héllo"),
		BinaryValue([]byte{}),
		BinaryValue([]byte{0, 1, 2}),
	} {
		row, err := cur.Bind(v).TryNext()
		if err != nil {
			t.Fatal(err)
		}
		got, err := row.Value(0)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(v) {
			t.Errorf("bound %v (%v), read %v (%v)", v, v.Type(), got, got.Type())
		}
	}
}

func TestOpenFlags(t *testing.T) {
	f := NewOpenFlags().WithCreate().WithReadWrite()
	if !f.has(sqliteh.SQLITE_OPEN_CREATE) || !f.has(sqliteh.SQLITE_OPEN_READWRITE) {
		t.Errorf("flags=%v", f)
	}
	f = f.WithReadOnly()
	if f.has(sqliteh.SQLITE_OPEN_READWRITE) || f.has(sqliteh.SQLITE_OPEN_CREATE) || !f.has(sqliteh.SQLITE_OPEN_READONLY) {
		t.Errorf("WithReadOnly flags=%v", f)
	}
	f = NewOpenFlags().WithNoMutex().WithFullMutex()
	if f.has(sqliteh.SQLITE_OPEN_NOMUTEX) || !f.has(sqliteh.SQLITE_OPEN_FULLMUTEX) {
		t.Errorf("WithFullMutex flags=%v", f)
	}
}
