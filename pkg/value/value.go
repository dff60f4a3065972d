// Package value holds the caller-facing typed Value and the packed Record
// it is read from or written into, plus the RID that locates a record on
// disk.
//
// Grounded on the teacher's pkg/document/types.go Value{Type; Data
// interface{}}, but narrowed to a closed tagged union over the four fixed
// column types instead of an open interface{} payload — spec.md §9's
// design note calls for "freshly allocated" Values per accessor call
// rather than shared scratch, which NewInt/NewFloat/NewBool/NewString and
// GetAttr all honor.
package value

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/mnohosten/coredb/pkg/dberror"
	"github.com/mnohosten/coredb/pkg/schema"
)

// RID identifies a record by its data page and starting slot.
type RID struct {
	Page int32
	Slot int32
}

// Record is a RID plus its packed bytes, recordSize(schema) long.
type Record struct {
	ID   RID
	Data []byte
}

// NewRecord allocates a zeroed record buffer sized for sch.
func NewRecord(sch *schema.Schema) *Record {
	return &Record{Data: make([]byte, sch.RecordSize())}
}

// Value is a typed scalar: exactly one of IntV/FloatV/BoolV/StringV is
// meaningful, selected by DataType.
type Value struct {
	DataType schema.DataType
	IntV     int32
	FloatV   float32
	BoolV    bool
	StringV  string
}

func NewInt(v int32) *Value    { return &Value{DataType: schema.TypeInt, IntV: v} }
func NewFloat(v float32) *Value { return &Value{DataType: schema.TypeFloat, FloatV: v} }
func NewBool(v bool) *Value    { return &Value{DataType: schema.TypeBool, BoolV: v} }
func NewString(v string) *Value { return &Value{DataType: schema.TypeString, StringV: v} }

// GetAttr decodes attribute i out of rec according to sch, returning a
// freshly allocated Value.
func GetAttr(rec *Record, sch *schema.Schema, i int) (*Value, error) {
	if i < 0 || i >= len(sch.Attributes) {
		return nil, dberror.New(dberror.UnknownDataType, "getAttr", nil)
	}
	a := sch.Attributes[i]
	off := sch.AttrOffset(i)

	switch a.Type {
	case schema.TypeInt:
		return NewInt(int32(binary.LittleEndian.Uint32(rec.Data[off : off+4]))), nil
	case schema.TypeFloat:
		bits := binary.LittleEndian.Uint32(rec.Data[off : off+4])
		return NewFloat(math.Float32frombits(bits)), nil
	case schema.TypeBool:
		return NewBool(rec.Data[off] != 0), nil
	case schema.TypeString:
		raw := rec.Data[off : off+a.Width]
		n := bytes.IndexByte(raw, 0)
		if n == -1 {
			n = len(raw)
		}
		return NewString(string(raw[:n])), nil
	default:
		return nil, dberror.New(dberror.UnknownDataType, "getAttr", nil)
	}
}

// SetAttr encodes v into attribute i's slot within rec, truncating
// over-length strings and zero-padding shorter ones.
func SetAttr(rec *Record, sch *schema.Schema, i int, v *Value) error {
	if i < 0 || i >= len(sch.Attributes) {
		return dberror.New(dberror.UnknownDataType, "setAttr", nil)
	}
	a := sch.Attributes[i]
	off := sch.AttrOffset(i)

	switch a.Type {
	case schema.TypeInt:
		binary.LittleEndian.PutUint32(rec.Data[off:off+4], uint32(v.IntV))
	case schema.TypeFloat:
		binary.LittleEndian.PutUint32(rec.Data[off:off+4], math.Float32bits(v.FloatV))
	case schema.TypeBool:
		if v.BoolV {
			rec.Data[off] = 1
		} else {
			rec.Data[off] = 0
		}
	case schema.TypeString:
		dst := rec.Data[off : off+a.Width]
		for k := range dst {
			dst[k] = 0
		}
		copy(dst, v.StringV)
	default:
		return dberror.New(dberror.UnknownDataType, "setAttr", nil)
	}
	return nil
}
