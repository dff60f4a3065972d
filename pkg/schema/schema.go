// Package schema describes the fixed, in-memory shape of a table's tuples:
// an ordered list of typed, fixed-width attributes plus a key-column set,
// and the ASCII serialization spec.md §6 mandates for persisting it in the
// table header.
//
// Grounded on the teacher's pkg/document/types.go Type enum, narrowed from
// BSON's open type set down to the spec's fixed four (INT, FLOAT, BOOL,
// STRING). The text grammar itself has no teacher analogue — the teacher
// serializes documents as binary BSON, not a human-readable grammar — so
// Serialize/Parse are hand-written against spec.md §6's exact format.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mnohosten/coredb/pkg/dberror"
)

// DataType is one of the four column types the core understands.
type DataType int

const (
	TypeInt DataType = iota
	TypeFloat
	TypeBool
	TypeString
)

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	case TypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Attribute describes one column: its name, type, and (for STRING) fixed
// capacity in bytes.
type Attribute struct {
	Name  string
	Type  DataType
	Width int // fixed string capacity; ignored for non-STRING types
}

// width returns a's on-disk width in bytes.
func (a Attribute) width() int {
	switch a.Type {
	case TypeInt:
		return 4
	case TypeFloat:
		return 4
	case TypeBool:
		return 1
	case TypeString:
		return a.Width
	default:
		return 0
	}
}

// Schema is an ordered attribute list plus the set of attribute indices
// that form the key. The key set is round-tripped through serialization
// but not otherwise consulted by the core (spec.md §3: "unused for lookup
// in the core; retained for round-trip").
type Schema struct {
	Attributes []Attribute
	KeyIndices []int
}

// RecordSize is the sum of every attribute's fixed width — the R in
// spec.md §4.4.
func (s *Schema) RecordSize() int {
	total := 0
	for _, a := range s.Attributes {
		total += a.width()
	}
	return total
}

// AttrOffset returns the byte offset of attribute i within a packed
// record: the sum of the widths of every attribute before it.
func (s *Schema) AttrOffset(i int) int {
	off := 0
	for j := 0; j < i; j++ {
		off += s.Attributes[j].width()
	}
	return off
}

// AttrWidth returns attribute i's on-disk width in bytes.
func (s *Schema) AttrWidth(i int) int {
	return s.Attributes[i].width()
}

// Serialize renders s into the ASCII grammar spec.md §6 mandates:
//
//	Schema with <N> attributes (name1: TYPE1, name2: TYPE2[4], ...) with keys: (k1, k2, ...)
func Serialize(s *Schema) string {
	parts := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		if a.Type == TypeString {
			parts[i] = fmt.Sprintf("%s: %s[%d]", a.Name, a.Type, a.Width)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", a.Name, a.Type)
		}
	}
	keys := make([]string, len(s.KeyIndices))
	for i, k := range s.KeyIndices {
		keys[i] = s.Attributes[k].Name
	}
	return fmt.Sprintf("Schema with %d attributes (%s) with keys: (%s)",
		len(s.Attributes), strings.Join(parts, ", "), strings.Join(keys, ", "))
}

var (
	schemaPattern = regexp.MustCompile(`^Schema with (\d+) attributes \((.*)\) with keys: \((.*)\)$`)
	attrPattern   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*): (INT|FLOAT|BOOL|STRING)(?:\[(\d+)\])?$`)
)

// Parse recovers a Schema from text produced by Serialize.
func Parse(text string) (*Schema, error) {
	m := schemaPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, dberror.New(dberror.UnknownDataType, "parseSchema", fmt.Errorf("malformed schema text: %q", text))
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, dberror.New(dberror.UnknownDataType, "parseSchema", err)
	}

	var attrParts []string
	if trimmed := strings.TrimSpace(m[2]); trimmed != "" {
		attrParts = strings.Split(trimmed, ", ")
	}
	if len(attrParts) != n {
		return nil, dberror.New(dberror.UnknownDataType, "parseSchema",
			fmt.Errorf("attribute count mismatch: header says %d, found %d", n, len(attrParts)))
	}

	attrs := make([]Attribute, n)
	nameIdx := make(map[string]int, n)
	for i, p := range attrParts {
		am := attrPattern.FindStringSubmatch(strings.TrimSpace(p))
		if am == nil {
			return nil, dberror.New(dberror.UnknownDataType, "parseSchema", fmt.Errorf("malformed attribute %q", p))
		}
		dt, err := parseDataType(am[2])
		if err != nil {
			return nil, err
		}
		width := 0
		if am[3] != "" {
			width, _ = strconv.Atoi(am[3])
		}
		attrs[i] = Attribute{Name: am[1], Type: dt, Width: width}
		nameIdx[am[1]] = i
	}

	var keyIdx []int
	if trimmed := strings.TrimSpace(m[3]); trimmed != "" {
		for _, k := range strings.Split(trimmed, ", ") {
			k = strings.TrimSpace(k)
			idx, ok := nameIdx[k]
			if !ok {
				return nil, dberror.New(dberror.UnknownDataType, "parseSchema", fmt.Errorf("unknown key column %q", k))
			}
			keyIdx = append(keyIdx, idx)
		}
	}

	return &Schema{Attributes: attrs, KeyIndices: keyIdx}, nil
}

func parseDataType(s string) (DataType, error) {
	switch s {
	case "INT":
		return TypeInt, nil
	case "FLOAT":
		return TypeFloat, nil
	case "BOOL":
		return TypeBool, nil
	case "STRING":
		return TypeString, nil
	default:
		return 0, dberror.New(dberror.UnknownDataType, "parseSchema", fmt.Errorf("unknown type %q", s))
	}
}
