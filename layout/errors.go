package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/docpdf/resources"
)

var (
	ErrContentOverflow        = errors.New("content overflow")
	ErrElementTooLarge        = errors.New("element too large")
	ErrResourceUnavailable    = errors.New("resource unavailable")
	ErrOverflowPolicyRequired = errors.New("overflow policy required")
)

// LayoutError locates a layout failure. Kind is one of the sentinels above;
// Err, when set, is the underlying cause.
type LayoutError struct {
	Kind  error
	Block int
	Page  int
	Key   resources.Key
	Msg   string
	Err   error
}

func (e *LayoutError) Error() string {
	var b strings.Builder
	b.WriteString("layout")
	if e.Block >= 0 {
		fmt.Fprintf(&b, ": block %d", e.Block)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " page %d", e.Page)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Key != "" {
		fmt.Fprintf(&b, " %s", e.Key)
	}
	if e.Msg != "" {
		b.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LayoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
