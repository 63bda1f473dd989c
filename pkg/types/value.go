// pkg/types/value.go
package types

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// ValueType represents the type of a database value
type ValueType int

const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeText
	TypeBlob
	TypeDate
	TypeTimestamp
)

// String returns the SQL name of the type
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOLEAN"
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	case TypeDate:
		return "DATE"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// Value represents a database value (like SQLite's Mem structure)
type Value struct {
	typ      ValueType
	boolVal  bool
	intVal   int64
	floatVal float64
	textVal  string
	blobVal  []byte
	timeVal  time.Time
}

func NewNull() Value {
	return Value{typ: TypeNull}
}

func NewBool(b bool) Value {
	return Value{typ: TypeBool, boolVal: b}
}

func NewInt(i int64) Value {
	return Value{typ: TypeInt, intVal: i}
}

func NewFloat(f float64) Value {
	return Value{typ: TypeFloat, floatVal: f}
}

func NewText(s string) Value {
	return Value{typ: TypeText, textVal: s}
}

func NewBlob(b []byte) Value {
	return Value{typ: TypeBlob, blobVal: b}
}

// NewDate creates a date value from calendar components
func NewDate(year, month, day int) Value {
	return Value{typ: TypeDate, timeVal: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// NewTimestamp creates a timestamp value; the instant is stored in UTC
func NewTimestamp(t time.Time) Value {
	return Value{typ: TypeTimestamp, timeVal: t.UTC()}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNull() bool    { return v.typ == TypeNull }
func (v Value) Bool() bool      { return v.boolVal }
func (v Value) Int() int64      { return v.intVal }
func (v Value) Float() float64  { return v.floatVal }
func (v Value) Text() string    { return v.textVal }
func (v Value) Blob() []byte    { return v.blobVal }
func (v Value) Time() time.Time { return v.timeVal }

// DateValue returns the calendar components of a date or timestamp value
func (v Value) DateValue() (year, month, day int) {
	y, m, d := v.timeVal.Date()
	return y, int(m), d
}

// IsNumeric reports whether the value is of integer or float type
func (v Value) IsNumeric() bool {
	return v.typ == TypeInt || v.typ == TypeFloat
}

// Copy returns a deep copy of the value
func (v Value) Copy() Value {
	c := v
	if v.typ == TypeBlob && v.blobVal != nil {
		c.blobVal = make([]byte, len(v.blobVal))
		copy(c.blobVal, v.blobVal)
	}
	return c
}

// MinValue returns the smallest representable value of the given numeric type.
// Used as the initial accumulator for MAX aggregation.
func MinValue(t ValueType) Value {
	switch t {
	case TypeInt:
		return NewInt(math.MinInt64)
	case TypeFloat:
		return NewFloat(math.Inf(-1))
	default:
		return NewNull()
	}
}

// MaxValue returns the largest representable value of the given numeric type.
// Used as the initial accumulator for MIN aggregation.
func MaxValue(t ValueType) Value {
	switch t {
	case TypeInt:
		return NewInt(math.MaxInt64)
	case TypeFloat:
		return NewFloat(math.Inf(1))
	default:
		return NewNull()
	}
}

// NumericZero returns the zero value of the given numeric type.
// Used as the initial accumulator for SUM/AVG aggregation.
func NumericZero(t ValueType) Value {
	switch t {
	case TypeFloat:
		return NewFloat(0)
	default:
		return NewInt(0)
	}
}

// NewNumeric creates a value of the given numeric type from an integer
func NewNumeric(t ValueType, n int64) Value {
	switch t {
	case TypeFloat:
		return NewFloat(float64(n))
	default:
		return NewInt(n)
	}
}

func (v Value) toFloat() float64 {
	switch v.typ {
	case TypeInt:
		return float64(v.intVal)
	case TypeFloat:
		return v.floatVal
	case TypeBool:
		if v.boolVal {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// AsInt returns the value as an int64. Only numeric values convert;
// float values truncate toward zero.
func (v Value) AsInt() (int64, error) {
	switch v.typ {
	case TypeInt:
		return v.intVal, nil
	case TypeFloat:
		return int64(v.floatVal), nil
	case TypeBool:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errors.Newf("cannot convert %s value to integer", v.typ)
	}
}

// Compare compares two values, returns -1, 0, or 1.
// NULL orders before every non-NULL value (nulls sort first under ASC).
func (v Value) Compare(other Value) int {
	// Handle NULL
	if v.IsNull() && other.IsNull() {
		return 0
	}
	if v.IsNull() {
		return -1
	}
	if other.IsNull() {
		return 1
	}

	// Same type comparisons
	if v.typ == other.typ {
		switch v.typ {
		case TypeBool:
			l, r := 0, 0
			if v.boolVal {
				l = 1
			}
			if other.boolVal {
				r = 1
			}
			return l - r
		case TypeInt:
			l, r := v.intVal, other.intVal
			if l < r {
				return -1
			}
			if l > r {
				return 1
			}
			return 0
		case TypeFloat:
			l, r := v.floatVal, other.floatVal
			if l < r {
				return -1
			}
			if l > r {
				return 1
			}
			return 0
		case TypeText:
			l, r := v.textVal, other.textVal
			if l < r {
				return -1
			}
			if l > r {
				return 1
			}
			return 0
		case TypeBlob:
			l, r := string(v.blobVal), string(other.blobVal)
			if l < r {
				return -1
			}
			if l > r {
				return 1
			}
			return 0
		case TypeDate, TypeTimestamp:
			if v.timeVal.Before(other.timeVal) {
				return -1
			}
			if v.timeVal.After(other.timeVal) {
				return 1
			}
			return 0
		}
	}

	// Mixed numeric types
	if v.IsNumeric() && other.IsNumeric() {
		l, r := v.toFloat(), other.toFloat()
		if l < r {
			return -1
		}
		if l > r {
			return 1
		}
		return 0
	}

	// Default: compare by type order
	if v.typ < other.typ {
		return -1
	}
	return 1
}

// Equals reports whether two values compare equal
func (v Value) Equals(other Value) bool {
	if v.IsNull() || other.IsNull() {
		return v.IsNull() && other.IsNull()
	}
	return v.Compare(other) == 0
}

// Add returns the numeric sum of two values.
// NULL propagates; integer addition wraps on overflow.
func (v Value) Add(other Value) (Value, error) {
	if v.IsNull() || other.IsNull() {
		return NewNull(), nil
	}
	if v.typ == TypeFloat || other.typ == TypeFloat {
		if !v.IsNumeric() || !other.IsNumeric() {
			return NewNull(), errors.Newf("cannot add %s and %s", v.typ, other.typ)
		}
		return NewFloat(v.toFloat() + other.toFloat()), nil
	}
	if v.typ == TypeInt && other.typ == TypeInt {
		return NewInt(v.intVal + other.intVal), nil
	}
	return NewNull(), errors.Newf("cannot add %s and %s", v.typ, other.typ)
}

// Sub returns the numeric difference of two values
func (v Value) Sub(other Value) (Value, error) {
	if v.IsNull() || other.IsNull() {
		return NewNull(), nil
	}
	if v.typ == TypeFloat || other.typ == TypeFloat {
		if !v.IsNumeric() || !other.IsNumeric() {
			return NewNull(), errors.Newf("cannot subtract %s and %s", v.typ, other.typ)
		}
		return NewFloat(v.toFloat() - other.toFloat()), nil
	}
	if v.typ == TypeInt && other.typ == TypeInt {
		return NewInt(v.intVal - other.intVal), nil
	}
	return NewNull(), errors.Newf("cannot subtract %s and %s", v.typ, other.typ)
}

// Div returns the numeric quotient of two values.
// Division by zero yields NULL, matching SQL semantics.
func (v Value) Div(other Value) (Value, error) {
	if v.IsNull() || other.IsNull() {
		return NewNull(), nil
	}
	if v.typ == TypeFloat || other.typ == TypeFloat {
		if !v.IsNumeric() || !other.IsNumeric() {
			return NewNull(), errors.Newf("cannot divide %s by %s", v.typ, other.typ)
		}
		r := other.toFloat()
		if r == 0 {
			return NewNull(), nil
		}
		return NewFloat(v.toFloat() / r), nil
	}
	if v.typ == TypeInt && other.typ == TypeInt {
		if other.intVal == 0 {
			return NewNull(), nil
		}
		return NewInt(v.intVal / other.intVal), nil
	}
	return NewNull(), errors.Newf("cannot divide %s by %s", v.typ, other.typ)
}

// CastAs converts the value to the target type.
// NULL casts to NULL of any type.
func (v Value) CastAs(t ValueType) (Value, error) {
	if v.typ == t {
		return v, nil
	}
	if v.IsNull() {
		return NewNull(), nil
	}
	switch t {
	case TypeBool:
		switch v.typ {
		case TypeInt:
			return NewBool(v.intVal != 0), nil
		case TypeFloat:
			return NewBool(v.floatVal != 0), nil
		}
	case TypeInt:
		switch v.typ {
		case TypeBool:
			if v.boolVal {
				return NewInt(1), nil
			}
			return NewInt(0), nil
		case TypeFloat:
			return NewInt(int64(v.floatVal)), nil
		case TypeText:
			i, err := strconv.ParseInt(v.textVal, 10, 64)
			if err != nil {
				return NewNull(), errors.Wrapf(err, "cannot cast %q to INTEGER", v.textVal)
			}
			return NewInt(i), nil
		}
	case TypeFloat:
		switch v.typ {
		case TypeBool:
			return NewFloat(v.toFloat()), nil
		case TypeInt:
			return NewFloat(float64(v.intVal)), nil
		case TypeText:
			f, err := strconv.ParseFloat(v.textVal, 64)
			if err != nil {
				return NewNull(), errors.Wrapf(err, "cannot cast %q to FLOAT", v.textVal)
			}
			return NewFloat(f), nil
		}
	case TypeText:
		return NewText(v.String()), nil
	}
	return NewNull(), errors.Newf("unsupported cast from %s to %s", v.typ, t)
}

// String renders the value for display
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case TypeInt:
		return strconv.FormatInt(v.intVal, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.floatVal, 'g', -1, 64)
	case TypeText:
		return v.textVal
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.blobVal)
	case TypeDate:
		return v.timeVal.Format("2006-01-02")
	case TypeTimestamp:
		return v.timeVal.Format("2006-01-02 15:04:05")
	default:
		return "?"
	}
}
