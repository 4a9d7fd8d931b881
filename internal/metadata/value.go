package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindScalar holds an opaque string.
	KindScalar Kind = iota
	// KindNumeric holds a float64.
	KindNumeric
	// KindList holds an ordered string list (genres and similar).
	KindList
	// KindTime holds a timestamp.
	KindTime
)

// Value is a tagged-variant tag value. Comparisons and conversions are
// explicit per variant pair; there is no reflective type branching elsewhere.
type Value struct {
	kind   Kind
	scalar string
	num    float64
	list   []string
	ts     time.Time
}

// String constructs a scalar value.
func String(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Number constructs a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumeric, num: f}
}

// Int constructs a numeric value from an integer.
func Int(i int64) Value {
	return Value{kind: KindNumeric, num: float64(i)}
}

// List constructs a list value. The slice is copied.
func List(items ...string) Value {
	copied := make([]string, len(items))
	copy(copied, items)
	return Value{kind: KindList, list: copied}
}

// Time constructs a timestamp value.
func Time(t time.Time) Value {
	return Value{kind: KindTime, ts: t}
}

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the value is blank: an empty or whitespace-only
// scalar, an empty list, or a zero timestamp. Numeric values are never empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return strings.TrimSpace(v.scalar) == ""
	case KindList:
		return len(v.list) == 0
	case KindTime:
		return v.ts.IsZero()
	default:
		return false
	}
}

// Text returns the canonical textual representation of the value.
// Lists join with ", ", numbers render without a trailing ".0" when integral.
func (v Value) Text() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindNumeric:
		if v.num == float64(int64(v.num)) {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindList:
		return strings.Join(v.list, ", ")
	case KindTime:
		return v.ts.UTC().Format(time.RFC3339)
	}
	return ""
}

// Items returns the list elements. Scalars split on the first known
// delimiter so a list survives the round trip through its text form;
// a plain string comes back as a single element.
func (v Value) Items() []string {
	switch v.kind {
	case KindList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	case KindScalar:
		if strings.TrimSpace(v.scalar) == "" {
			return nil
		}
		for _, delim := range []string{";", ",", "|"} {
			if !strings.Contains(v.scalar, delim) {
				continue
			}
			var out []string
			for _, part := range strings.Split(v.scalar, delim) {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			return out
		}
		return []string{v.scalar}
	}
	return nil
}

// Float attempts a numeric view of the value. Numeric values convert
// directly; scalars parse when they look like numbers.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumeric:
		return v.num, true
	case KindScalar:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.scalar), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Timestamp returns the time variant's value.
func (v Value) Timestamp() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.ts, true
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Equal reports semantic equality between two values:
// strings compare case- and whitespace-insensitively, lists compare
// element-wise under the same normalization, numeric-likes compare as
// floats when both sides parse, and everything else compares raw text.
func (v Value) Equal(other Value) bool {
	if v.kind == KindList || other.kind == KindList {
		a, b := v.Items(), other.Items()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if normalizeText(a[i]) != normalizeText(b[i]) {
				return false
			}
		}
		return true
	}

	if av, ok := v.Float(); ok {
		if bv, ok := other.Float(); ok {
			return av == bv
		}
	}

	if v.kind == KindTime && other.kind == KindTime {
		return v.ts.Equal(other.ts)
	}

	return normalizeText(v.Text()) == normalizeText(other.Text())
}

// MarshalJSON encodes the value as its natural JSON type: scalars and
// timestamps as strings, numerics as numbers, lists as string arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindNumeric:
		return json.Marshal(v.num)
	case KindList:
		if v.list == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.list)
	case KindTime:
		return json.Marshal(v.ts.UTC().Format(time.RFC3339Nano))
	}
	return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
}

// UnmarshalJSON decodes by JSON type: numbers become numerics, arrays become
// lists, and strings become scalars. Timestamps round-trip as their RFC 3339
// text; date heuristics operate on textual representations so nothing is lost.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*v = String("")
		return nil
	}
	switch trimmed[0] {
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = Value{kind: KindList, list: items}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = String(strconv.FormatBool(b))
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
		return nil
	}
}
