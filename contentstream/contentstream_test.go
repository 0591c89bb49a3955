package contentstream

import (
	"errors"
	"testing"
)

func TestSerialize(t *testing.T) {
	ops := []Operation{
		{Operator: "BDC", Operands: []Operand{Name("OC"), Name("MC0")}},
		Op("q"),
		Op("BT"),
		{Operator: "Tf", Operands: []Operand{Name("F0"), Num(12)}},
		Op("Td", 10, 189.333333),
		{Operator: "TJ", Operands: []Operand{ArrayOperand{Values: []Operand{
			HexStringOperand{Value: []byte{0x00, 0x2B}}, Num(-12.5), HexStringOperand{Value: []byte{0x00, 0x4C}},
		}}}},
		{Operator: "Tj", Operands: []Operand{StringOperand{Value: []byte("a(b)")}}},
		Op("ET"),
		Op("Q"),
		Op("EMC"),
	}
	want := "/OC /MC0 BDC\nq\nBT\n/F0 12 Tf\n10 189.33333 Td\n[<002B> -12.5 <004C>] TJ\n(a\\(b\\)) Tj\nET\nQ\nEMC\n"
	if got := string(Serialize(ops)); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
	if err := Check(ops); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestCheckRejectsUnbalanced(t *testing.T) {
	cases := [][]Operation{
		{Op("q")},
		{Op("Q")},
		{Op("BT"), Op("BT"), Op("ET"), Op("ET")},
		{Op("BT"), Op("q"), Op("Q"), Op("ET")},
		{Op("q"), Op("BT"), Op("Q"), Op("ET")},
		{{Operator: "BDC", Operands: []Operand{Name("OC"), Name("MC0")}}, Op("q"), Op("EMC"), Op("Q")},
	}
	for i, ops := range cases {
		if err := Check(ops); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("case %d: expected ErrUnbalanced, got %v", i, err)
		}
	}
}
