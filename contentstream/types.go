// Package contentstream holds page content operators and writes them in
// PDF content stream syntax.
package contentstream

// Operation is one operator with its operands, e.g. "10 190 Td".
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is one of the operand types below.
type Operand interface {
	operand()
}

type NumberOperand struct{ Value float64 }

func (NumberOperand) operand() {}

type NameOperand struct{ Value string }

func (NameOperand) operand() {}

type StringOperand struct{ Value []byte }

func (StringOperand) operand() {}

// HexStringOperand is written as <...>; glyph ids of Identity-H fonts use it.
type HexStringOperand struct{ Value []byte }

func (HexStringOperand) operand() {}

type ArrayOperand struct{ Values []Operand }

func (ArrayOperand) operand() {}

func Num(v float64) NumberOperand { return NumberOperand{Value: v} }
func Name(v string) NameOperand   { return NameOperand{Value: v} }

// Op builds an operation from numbers only.
func Op(operator string, nums ...float64) Operation {
	ops := make([]Operand, len(nums))
	for i, n := range nums {
		ops[i] = Num(n)
	}
	return Operation{Operator: operator, Operands: ops}
}
