package timeseries

// ValueKind discriminates how a decoded field value is represented.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindFloat
	KindString
	KindBytes
	// KindFloatBytes carries both a numeric view (first element) and the raw
	// bytes of a numeric array field.
	KindFloatBytes
)

// Value is a decoded scalar (or array) from a log message. Exactly one
// representation is meaningful per kind; FloatBytes carries two.
type Value struct {
	Kind  ValueKind
	Float float64
	Str   string
	Bytes []byte
}

func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }
func FloatBytes(v float64, b []byte) Value {
	return Value{Kind: KindFloatBytes, Float: v, Bytes: b}
}

// Field is a named value within a record. Order matters: it is the column
// order declared by the log format.
type Field struct {
	Name  string
	Value Value
}

// Record is one decoded log message, normalized for export: every field of
// the message becomes its own time series keyed by (Type, Instance, Name).
type Record struct {
	Type        string
	TimestampMS int64
	Line        int64
	Instance    int
	Fields      []Field
}

// Field returns the named field value, if present.
func (r *Record) Field(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}
