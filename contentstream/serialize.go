package contentstream

import (
	"bytes"

	"github.com/wudi/docpdf/writer"
)

// Serialize writes ops one per line, operands before the operator.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		for _, operand := range op.Operands {
			appendOperand(&buf, operand)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func appendOperand(buf *bytes.Buffer, op Operand) {
	switch v := op.(type) {
	case NumberOperand:
		buf.WriteString(writer.FormatNumber(v.Value))
	case NameOperand:
		writer.AppendName(buf, v.Value)
	case StringOperand:
		buf.Write(writer.EscapeLiteralString(v.Value))
	case HexStringOperand:
		writer.AppendHexString(buf, v.Value)
	case ArrayOperand:
		buf.WriteByte('[')
		for i, it := range v.Values {
			if i > 0 {
				buf.WriteByte(' ')
			}
			appendOperand(buf, it)
		}
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
}
