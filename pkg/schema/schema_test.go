package schema

import "testing"

func employeeSchema() *Schema {
	return &Schema{
		Attributes: []Attribute{
			{Name: "id", Type: TypeInt},
			{Name: "name", Type: TypeString, Width: 10},
			{Name: "salary", Type: TypeFloat},
		},
		KeyIndices: []int{0},
	}
}

func TestSerialize(t *testing.T) {
	s := employeeSchema()
	got := Serialize(s)
	want := "Schema with 3 attributes (id: INT, name: STRING[10], salary: FLOAT) with keys: (id)"
	if got != want {
		t.Fatalf("Serialize = %q, want %q", got, want)
	}
}

func TestParseRoundTrip(t *testing.T) {
	s := employeeSchema()
	text := Serialize(s)

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Attributes) != len(s.Attributes) {
		t.Fatalf("Parse attribute count = %d, want %d", len(got.Attributes), len(s.Attributes))
	}
	for i, a := range got.Attributes {
		if a != s.Attributes[i] {
			t.Fatalf("attribute %d = %+v, want %+v", i, a, s.Attributes[i])
		}
	}
	if len(got.KeyIndices) != 1 || got.KeyIndices[0] != 0 {
		t.Fatalf("KeyIndices = %v, want [0]", got.KeyIndices)
	}
}

func TestParseNoKeys(t *testing.T) {
	s := &Schema{Attributes: []Attribute{{Name: "flag", Type: TypeBool}}}
	text := Serialize(s)
	if text != "Schema with 1 attributes (flag: BOOL) with keys: ()" {
		t.Fatalf("Serialize = %q", text)
	}

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.KeyIndices) != 0 {
		t.Fatalf("KeyIndices = %v, want empty", got.KeyIndices)
	}
}

func TestParseMultipleKeys(t *testing.T) {
	s := &Schema{
		Attributes: []Attribute{
			{Name: "a", Type: TypeInt},
			{Name: "b", Type: TypeInt},
		},
		KeyIndices: []int{0, 1},
	}
	text := Serialize(s)

	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.KeyIndices) != 2 || got.KeyIndices[0] != 0 || got.KeyIndices[1] != 1 {
		t.Fatalf("KeyIndices = %v, want [0 1]", got.KeyIndices)
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse("not a schema at all"); err == nil {
		t.Fatalf("Parse accepted malformed text")
	}
}

func TestParseUnknownKeyColumn(t *testing.T) {
	text := "Schema with 1 attributes (id: INT) with keys: (nope)"
	if _, err := Parse(text); err == nil {
		t.Fatalf("Parse accepted an unknown key column")
	}
}

func TestRecordSizeAndOffsets(t *testing.T) {
	s := employeeSchema()
	if got := s.RecordSize(); got != 18 {
		t.Fatalf("RecordSize = %d, want 18", got)
	}
	if got := s.AttrOffset(0); got != 0 {
		t.Fatalf("AttrOffset(0) = %d, want 0", got)
	}
	if got := s.AttrOffset(1); got != 4 {
		t.Fatalf("AttrOffset(1) = %d, want 4", got)
	}
	if got := s.AttrOffset(2); got != 14 {
		t.Fatalf("AttrOffset(2) = %d, want 14", got)
	}
	if got := s.AttrWidth(1); got != 10 {
		t.Fatalf("AttrWidth(1) = %d, want 10", got)
	}
}
