package sqlite

import (
	"bytes"
	"encoding"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/corelite/sqlite/sqliteh"
)

// TimeFormat is the string format this package uses to store
// millisecond-precision time in SQLite in text format.
const TimeFormat = "2006-01-02 15:04:05.000-0700"

// Type is the runtime type of a Value.
type Type int

const (
	TypeNull Type = iota
	TypeInteger
	TypeFloat
	TypeString
	TypeBinary
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "Null"
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	case TypeBinary:
		return "Binary"
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

func typeOf(ct sqliteh.ColumnType) Type {
	switch ct {
	case sqliteh.SQLITE_INTEGER:
		return TypeInteger
	case sqliteh.SQLITE_FLOAT:
		return TypeFloat
	case sqliteh.SQLITE_TEXT:
		return TypeString
	case sqliteh.SQLITE_BLOB:
		return TypeBinary
	}
	return TypeNull
}

// Value is one column of data: NULL, a 64-bit integer, a 64-bit float,
// a string, or a byte slice.
//
// The zero Value is NULL.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
	b   []byte
}

// Null is the NULL Value.
var Null Value

func IntegerValue(v int64) Value { return Value{typ: TypeInteger, i: v} }
func FloatValue(v float64) Value { return Value{typ: TypeFloat, f: v} }
func StringValue(v string) Value { return Value{typ: TypeString, s: v} }

// BinaryValue returns a Binary Value. A nil slice is an empty blob,
// not NULL.
func BinaryValue(v []byte) Value { return Value{typ: TypeBinary, b: v} }

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNull() bool { return v.typ == TypeNull }

// Int64 returns the integer held by v, and whether v is an Integer.
func (v Value) Int64() (int64, bool) { return v.i, v.typ == TypeInteger }

// Float64 returns the float held by v, and whether v is a Float.
func (v Value) Float64() (float64, bool) { return v.f, v.typ == TypeFloat }

// Text returns the string held by v, and whether v is a String.
func (v Value) Text() (string, bool) { return v.s, v.typ == TypeString }

// Bytes returns the bytes held by v, and whether v is Binary.
func (v Value) Bytes() ([]byte, bool) { return v.b, v.typ == TypeBinary }

// Any returns v as nil, int64, float64, string, or []byte.
func (v Value) Any() any {
	switch v.typ {
	case TypeInteger:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeBinary:
		return v.b
	}
	return nil
}

// Equal reports whether v and o have the same type and contents.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInteger:
		return v.i == o.i
	case TypeFloat:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	case TypeBinary:
		return bytes.Equal(v.b, o.b)
	}
	return true
}

// String formats v as an SQL literal.
func (v Value) String() string {
	switch v.typ {
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	case TypeBinary:
		return "x'" + hex.EncodeToString(v.b) + "'"
	}
	return "NULL"
}

// ValueDecoder is implemented by types that know how to read themselves
// from a column. It is consulted by Convert, TryRead, Read and Row.Scan.
type ValueDecoder interface {
	DecodeValue(Value) error
}

// Convert decodes v into a T.
//
// Decoding is strict: integer targets accept only Integer values,
// float64 accepts only Float, string only String (which must be valid
// UTF-8), and []byte only Binary. Value and any accept everything.
// NULL is an error unless T is a pointer type, in which case NULL
// decodes as nil and anything else decodes through the pointed-to type.
func Convert[T any](v Value) (T, error) {
	var out T
	err := v.decodeInto(&out)
	return out, err
}

func mismatch(v Value, dst any) *Error {
	target := reflect.TypeOf(dst).Elem()
	msg := fmt.Sprintf("cannot decode %v into %v", v.typ, target)
	if v.typ == TypeNull {
		msg += " (use a pointer for optional values)"
	}
	return &Error{Code: sqliteh.SQLITE_MISMATCH, Loc: "Read", Msg: msg}
}

func (v Value) decodeInto(dst any) error {
	switch d := dst.(type) {
	case *Value:
		*d = v
		return nil
	case *any:
		*d = v.Any()
		return nil
	case ValueDecoder:
		return d.DecodeValue(v)
	case *int64:
		if v.typ != TypeInteger {
			return mismatch(v, dst)
		}
		*d = v.i
		return nil
	case *int:
		if v.typ != TypeInteger {
			return mismatch(v, dst)
		}
		*d = int(v.i)
		return nil
	case *bool:
		if v.typ != TypeInteger {
			return mismatch(v, dst)
		}
		*d = v.i != 0
		return nil
	case *float64:
		if v.typ != TypeFloat {
			return mismatch(v, dst)
		}
		*d = v.f
		return nil
	case *string:
		if v.typ != TypeString {
			return mismatch(v, dst)
		}
		if !utf8.ValidString(v.s) {
			return &Error{Code: sqliteh.SQLITE_MISMATCH, Loc: "Read", Msg: "text is not valid UTF-8"}
		}
		*d = v.s
		return nil
	case *[]byte:
		if v.typ != TypeBinary {
			return mismatch(v, dst)
		}
		*d = v.b
		return nil
	case *time.Time:
		switch v.typ {
		case TypeInteger:
			*d = time.Unix(v.i, 0)
			return nil
		case TypeString:
			t, err := parseTime(v.s)
			if err != nil {
				return &Error{Code: sqliteh.SQLITE_MISMATCH, Loc: "Read", Msg: err.Error()}
			}
			*d = t
			return nil
		}
		return mismatch(v, dst)
	}

	// Pointer targets are optional values.
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{Code: sqliteh.SQLITE_MISUSE, Loc: "Read", Msg: fmt.Sprintf("destination %T is not a non-nil pointer", dst)}
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer {
		return &Error{Code: sqliteh.SQLITE_MISMATCH, Loc: "Read", Msg: fmt.Sprintf("unsupported destination type %v", elem.Type())}
	}
	if v.typ == TypeNull {
		elem.SetZero()
		return nil
	}
	p := reflect.New(elem.Type().Elem())
	if err := v.decodeInto(p.Interface()); err != nil {
		return err
	}
	elem.Set(p)
	return nil
}

// ValueOf converts a Go value into a Value for binding.
//
// Almost all "basic" Go types (int, float64, string) are accepted, even
// when they are named types. bool binds as 0 or 1. time.Time binds as
// text in the shortest of these forms that is exact:
//
//	YYYY-MM-DD HH:MM
//	YYYY-MM-DD HH:MM:SS
//	YYYY-MM-DD HH:MM:SS.SSS
//
// with "[+-]HHMM" appended when the time is not UTC.
// An encoding.TextMarshaler binds as its marshaled text.
// uint and uint64 are rejected: SQLite has no unsigned 64-bit integer.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return x, nil
	case string:
		return StringValue(x), nil
	case int:
		return IntegerValue(int64(x)), nil
	case int64:
		return IntegerValue(x), nil
	case float64:
		return FloatValue(x), nil
	case bool:
		if x {
			return IntegerValue(1), nil
		}
		return IntegerValue(0), nil
	case []byte:
		return BinaryValue(x), nil
	case time.Time:
		return StringValue(formatTime(x)), nil
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return Null, misuse("Bind", "", "cannot marshal %T: %v", x, err)
		}
		return StringValue(string(b)), nil
	}

	// Look for named basic types or other convertible types.
	val := reflect.ValueOf(x)
	switch val.Kind() {
	case reflect.Bool:
		if val.Bool() {
			return IntegerValue(1), nil
		}
		return IntegerValue(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntegerValue(val.Int()), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Null, misuse("Bind", "", "sqlite does not support %T (try a string or TextMarshaler)", x)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return IntegerValue(int64(val.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(val.Float()), nil
	case reflect.String:
		return StringValue(val.String()), nil
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.Uint8 {
			return BinaryValue(val.Bytes()), nil
		}
	}
	return Null, misuse("Bind", "", "unknown value type %T (try a string or TextMarshaler)", x)
}

func formatTime(t time.Time) string {
	str := t.Format(TimeFormat)
	str = strings.TrimSuffix(str, "+0000")
	str = strings.TrimSuffix(str, ".000")
	str = strings.TrimSuffix(str, ":00")
	return str
}

// parseTime parses any of the forms formatTime produces.
func parseTime(v string) (time.Time, error) {
	format := TimeFormat
	if len(format) > len(v) {
		format = strings.TrimSuffix(format, "-0700")
	}
	if len(format) > len(v) {
		format = strings.TrimSuffix(format, ".000")
	}
	if len(format) > len(v) {
		format = strings.TrimSuffix(format, ":05")
	}
	t, err := time.Parse(format, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse time: %v", err)
	}
	return t, nil
}
