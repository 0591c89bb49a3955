package contentstream

import (
	"errors"
	"fmt"
)

var ErrUnbalanced = errors.New("unbalanced content stream")

// Check verifies that save/restore, text objects and marked content are
// properly nested and that no text object is left open.
func Check(ops []Operation) error {
	var stack []string
	pop := func(i int, want, op string) error {
		n := len(stack)
		if n == 0 || stack[n-1] != want {
			return fmt.Errorf("operation %d %s: %w", i, op, ErrUnbalanced)
		}
		stack = stack[:n-1]
		return nil
	}
	inText := func() bool { return len(stack) > 0 && stack[len(stack)-1] == "BT" }
	for i, op := range ops {
		switch op.Operator {
		case "q", "BDC", "BMC":
			if inText() && op.Operator == "q" {
				return fmt.Errorf("operation %d q inside text object: %w", i, ErrUnbalanced)
			}
			stack = append(stack, openerOf(op.Operator))
		case "BT":
			if inText() {
				return fmt.Errorf("operation %d nested BT: %w", i, ErrUnbalanced)
			}
			stack = append(stack, "BT")
		case "Q":
			if err := pop(i, "q", "Q"); err != nil {
				return err
			}
		case "ET":
			if err := pop(i, "BT", "ET"); err != nil {
				return err
			}
		case "EMC":
			if err := pop(i, "MC", "EMC"); err != nil {
				return err
			}
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("%d unclosed %s: %w", len(stack), stack[len(stack)-1], ErrUnbalanced)
	}
	return nil
}

func openerOf(op string) string {
	if op == "q" {
		return "q"
	}
	return "MC"
}
