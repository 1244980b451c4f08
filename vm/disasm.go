package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns a human-readable listing of a proc's byte stream.
func Disassemble(proc *Proc) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", procHeading(proc)))
	if len(proc.Parameters) > 0 {
		sb.WriteString(fmt.Sprintf("; Parameters (%d): %s\n", len(proc.Parameters), strings.Join(proc.Parameters, ", ")))
	}
	if proc.SourceFile != "" {
		sb.WriteString(fmt.Sprintf("; Source: %s:%d\n", proc.SourceFile, proc.Line))
	}
	sb.WriteString("\n")

	r := newStreamReader(proc.Bytecode)
	for !r.atEnd() {
		offset := r.pos
		line, err := disassembleInstruction(r)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  ; %v\n", offset, err))
			break
		}
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
	}
	return sb.String()
}

func procHeading(proc *Proc) string {
	if proc.OwnerPath != nil {
		return proc.OwnerPath.String() + "/proc/" + proc.Name
	}
	return proc.Name
}

func disassembleInstruction(r *streamReader) (string, error) {
	op, err := r.readOpcode()
	if err != nil {
		return "", err
	}
	info := GetOpcodeInfo(op)
	if len(info.Operands) == 0 {
		return info.Name, nil
	}

	parts := []string{fmt.Sprintf("%-20s", info.Name)}
	for _, kind := range info.Operands {
		switch kind {
		case OperandInt32:
			v, err := r.readInt32()
			if err != nil {
				return "", err
			}
			parts = append(parts, strconv.FormatInt(int64(v), 10))
		case OperandFloat64:
			f, err := r.readFloat64()
			if err != nil {
				return "", err
			}
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		case OperandString:
			s, err := r.readString()
			if err != nil {
				return "", err
			}
			parts = append(parts, strconv.Quote(truncate(s, 40)))
		case OperandPosition:
			v, err := r.readInt32()
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("-> %04X", v))
		case OperandArgList:
			count, err := r.readInt32()
			if err != nil {
				return "", err
			}
			recs := make([]string, 0, count)
			for n := int32(0); n < count; n++ {
				tag, err := r.readByte()
				if err != nil {
					return "", err
				}
				if tag == 1 {
					name, err := r.readString()
					if err != nil {
						return "", err
					}
					recs = append(recs, name+"=")
				} else {
					recs = append(recs, "_")
				}
			}
			parts = append(parts, fmt.Sprintf("(%s)", strings.Join(recs, ", ")))
		}
	}
	return strings.Join(parts, " "), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
