package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGeometry           = errors.New("invalid geometry")
	ErrDanglingResourceReference = errors.New("dangling resource reference")
	ErrInvalidStyle              = errors.New("invalid style")
	ErrEmptyText                 = errors.New("empty text")
	ErrMalformedBlock            = errors.New("malformed block")
	ErrDuplicateResource         = errors.New("duplicate resource declaration")
	ErrInvalidMetadata           = errors.New("invalid metadata")
)

// DocumentError locates a validation failure. Block is -1 for document-level
// problems and Run is -1 when the failure is not about a single run.
type DocumentError struct {
	Kind  error
	Block int
	Run   int
	Field string
	Msg   string
}

func (e *DocumentError) Error() string {
	var b strings.Builder
	b.WriteString("document")
	if e.Block >= 0 {
		fmt.Fprintf(&b, ": block %d", e.Block)
	}
	if e.Run >= 0 {
		fmt.Fprintf(&b, " run %d", e.Run)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Msg != "" {
		b.WriteString(": " + e.Msg)
	}
	return b.String()
}

func (e *DocumentError) Unwrap() error { return e.Kind }
