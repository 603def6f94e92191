package timeseries

// Typed nullable columns backing a sample batch. Values and null flags are
// kept in parallel slices; Get returns (value, ok) where ok is false for
// nulls.

type Int64Column struct {
	name  string
	data  []int64
	nulls []bool
}

func NewInt64Column(name string) *Int64Column { return &Int64Column{name: name} }

func (c *Int64Column) Name() string            { return c.name }
func (c *Int64Column) Len() int                { return len(c.data) }
func (c *Int64Column) IsNull(i int) bool       { return c.nulls[i] }
func (c *Int64Column) Get(i int) (int64, bool) { return c.data[i], !c.nulls[i] }
func (c *Int64Column) Append(v int64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *Int64Column) AppendNull()             { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }

type FloatColumn struct {
	name  string
	data  []float64
	nulls []bool
}

func NewFloatColumn(name string) *FloatColumn { return &FloatColumn{name: name} }

func (c *FloatColumn) Name() string              { return c.name }
func (c *FloatColumn) Len() int                  { return len(c.data) }
func (c *FloatColumn) IsNull(i int) bool         { return c.nulls[i] }
func (c *FloatColumn) Get(i int) (float64, bool) { return c.data[i], !c.nulls[i] }
func (c *FloatColumn) Append(v float64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *FloatColumn) AppendNull()               { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }

type StringColumn struct {
	name  string
	data  []string
	nulls []bool
}

func NewStringColumn(name string) *StringColumn { return &StringColumn{name: name} }

func (c *StringColumn) Name() string             { return c.name }
func (c *StringColumn) Len() int                 { return len(c.data) }
func (c *StringColumn) IsNull(i int) bool        { return c.nulls[i] }
func (c *StringColumn) Get(i int) (string, bool) { return c.data[i], !c.nulls[i] }
func (c *StringColumn) Append(v string)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *StringColumn) AppendNull()              { c.data = append(c.data, ""); c.nulls = append(c.nulls, true) }

type BytesColumn struct {
	name  string
	data  [][]byte
	nulls []bool
}

func NewBytesColumn(name string) *BytesColumn { return &BytesColumn{name: name} }

func (c *BytesColumn) Name() string             { return c.name }
func (c *BytesColumn) Len() int                 { return len(c.data) }
func (c *BytesColumn) IsNull(i int) bool        { return c.nulls[i] }
func (c *BytesColumn) Get(i int) ([]byte, bool) { return c.data[i], !c.nulls[i] }
func (c *BytesColumn) Append(v []byte)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *BytesColumn) AppendNull()              { c.data = append(c.data, nil); c.nulls = append(c.nulls, true) }

// Batch buffers samples for a single output partition in columnar form.
// The column set is fixed: it is the export schema.
type Batch struct {
	Timestamp   *Int64Column
	LineNumber  *Int64Column
	Value       *FloatColumn
	StringValue *StringColumn
	BinaryValue *BytesColumn
}

func NewBatch() *Batch {
	return &Batch{
		Timestamp:   NewInt64Column("Timestamp"),
		LineNumber:  NewInt64Column("LineNumber"),
		Value:       NewFloatColumn("Value"),
		StringValue: NewStringColumn("StringValue"),
		BinaryValue: NewBytesColumn("BinaryValue"),
	}
}

func (b *Batch) Len() int { return b.Timestamp.Len() }

// Append adds one sample row, splitting v across the value columns by kind.
func (b *Batch) Append(ts, line int64, v Value) {
	b.Timestamp.Append(ts)
	b.LineNumber.Append(line)
	switch v.Kind {
	case KindFloat:
		b.Value.Append(v.Float)
		b.StringValue.AppendNull()
		b.BinaryValue.AppendNull()
	case KindString:
		b.Value.AppendNull()
		b.StringValue.Append(v.Str)
		b.BinaryValue.AppendNull()
	case KindBytes:
		b.Value.AppendNull()
		b.StringValue.AppendNull()
		b.BinaryValue.Append(v.Bytes)
	case KindFloatBytes:
		b.Value.Append(v.Float)
		b.StringValue.AppendNull()
		b.BinaryValue.Append(v.Bytes)
	default:
		b.Value.AppendNull()
		b.StringValue.AppendNull()
		b.BinaryValue.AppendNull()
	}
}

// Reset truncates all columns, keeping allocations.
func (b *Batch) Reset() {
	b.Timestamp.data = b.Timestamp.data[:0]
	b.Timestamp.nulls = b.Timestamp.nulls[:0]
	b.LineNumber.data = b.LineNumber.data[:0]
	b.LineNumber.nulls = b.LineNumber.nulls[:0]
	b.Value.data = b.Value.data[:0]
	b.Value.nulls = b.Value.nulls[:0]
	b.StringValue.data = b.StringValue.data[:0]
	b.StringValue.nulls = b.StringValue.nulls[:0]
	b.BinaryValue.data = b.BinaryValue.data[:0]
	b.BinaryValue.nulls = b.BinaryValue.nulls[:0]
}
