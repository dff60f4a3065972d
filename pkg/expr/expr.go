// Package expr is the predicate evaluator spec.md calls "expr": the
// external collaborator the scan engine (recordmgr.Scan) uses as an
// oracle. It evaluates a small Boolean expression tree against a
// (record, schema) pair; comparisons and the And/Or/Not composites always
// yield a BOOL Value, while Attr and Lit yield a Value of their own type.
//
// Grounded on the teacher's pkg/query/operators.go EvaluateOperator switch
// over $eq/$ne/$gt/$gte/$lt/$lte, collapsed from BSON's interface{}
// document model down to the typed four-column record model: comparisons
// here dispatch on schema.DataType instead of a runtime type switch plus
// reflect.DeepEqual.
package expr

import (
	"strings"

	"github.com/mnohosten/coredb/pkg/dberror"
	"github.com/mnohosten/coredb/pkg/schema"
	"github.com/mnohosten/coredb/pkg/value"
)

// Expr evaluates to a Value given a record and the schema it was packed
// with. The scan engine only reads the BoolV field of the result.
type Expr interface {
	Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error)
}

// Attr references attribute Index by position in the schema.
type Attr struct {
	Index int
}

func (a Attr) Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error) {
	return value.GetAttr(rec, sch, a.Index)
}

// Lit is a literal value, independent of the record being evaluated.
type Lit struct {
	Val *value.Value
}

func (l Lit) Eval(*value.Record, *schema.Schema) (*value.Value, error) {
	return l.Val, nil
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Compare evaluates Left and Right and compares them with Op. Both sides
// must evaluate to the same DataType.
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

func (c Compare) Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error) {
	l, err := c.Left.Eval(rec, sch)
	if err != nil {
		return nil, err
	}
	r, err := c.Right.Eval(rec, sch)
	if err != nil {
		return nil, err
	}
	cmp, err := compareValues(l, r)
	if err != nil {
		return nil, err
	}

	var b bool
	switch c.Op {
	case Eq:
		b = cmp == 0
	case Ne:
		b = cmp != 0
	case Lt:
		b = cmp < 0
	case Le:
		b = cmp <= 0
	case Gt:
		b = cmp > 0
	case Ge:
		b = cmp >= 0
	}
	return value.NewBool(b), nil
}

func compareValues(l, r *value.Value) (int, error) {
	if l.DataType != r.DataType {
		return 0, dberror.New(dberror.UnknownDataType, "evalExpr", nil)
	}
	switch l.DataType {
	case schema.TypeInt:
		return compareOrdered(l.IntV, r.IntV), nil
	case schema.TypeFloat:
		return compareOrdered(l.FloatV, r.FloatV), nil
	case schema.TypeBool:
		return compareOrdered(boolRank(l.BoolV), boolRank(r.BoolV)), nil
	case schema.TypeString:
		return strings.Compare(l.StringV, r.StringV), nil
	default:
		return 0, dberror.New(dberror.UnknownDataType, "evalExpr", nil)
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareOrdered[T int | int32 | float32](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// And is true iff both operands evaluate to a true BOOL.
type And struct{ Left, Right Expr }

func (a And) Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error) {
	l, err := evalBool(a.Left, rec, sch)
	if err != nil {
		return nil, err
	}
	if !l {
		return value.NewBool(false), nil
	}
	r, err := evalBool(a.Right, rec, sch)
	if err != nil {
		return nil, err
	}
	return value.NewBool(r), nil
}

// Or is true iff either operand evaluates to a true BOOL.
type Or struct{ Left, Right Expr }

func (o Or) Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error) {
	l, err := evalBool(o.Left, rec, sch)
	if err != nil {
		return nil, err
	}
	if l {
		return value.NewBool(true), nil
	}
	r, err := evalBool(o.Right, rec, sch)
	if err != nil {
		return nil, err
	}
	return value.NewBool(r), nil
}

// Not negates Inner's BOOL result.
type Not struct{ Inner Expr }

func (n Not) Eval(rec *value.Record, sch *schema.Schema) (*value.Value, error) {
	v, err := evalBool(n.Inner, rec, sch)
	if err != nil {
		return nil, err
	}
	return value.NewBool(!v), nil
}

func evalBool(e Expr, rec *value.Record, sch *schema.Schema) (bool, error) {
	v, err := e.Eval(rec, sch)
	if err != nil {
		return false, err
	}
	return v.BoolV, nil
}

// True is the always-true predicate, useful for an unfiltered scan.
var True Expr = Lit{Val: value.NewBool(true)}
