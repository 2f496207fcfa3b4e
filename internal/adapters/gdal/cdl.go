package gdal

import (
	"fmt"
	"regexp"
	"strings"
)

// parseCDLStrings extracts the string values of one variable from ncdump
// CDL text output. Each quoted string in the variable's data section is one
// value; for a char variable with a leading time dimension that is one
// value per time slice.
func parseCDLStrings(raw []byte, variable string) ([][]byte, error) {
	text := string(raw)

	idx := strings.Index(text, "\ndata:")
	if idx < 0 {
		return nil, fmt.Errorf("no data section in CDL output")
	}
	text = text[idx+len("\ndata:"):]

	assignment := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(variable) + `\s*=`)
	loc := assignment.FindStringIndex(text)
	if loc == nil {
		return nil, fmt.Errorf("variable %q not found in CDL output", variable)
	}
	text = text[loc[1]:]

	var docs [][]byte
	var current strings.Builder
	inString := false
	escaped := false

scan:
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			switch c {
			case 'n':
				current.WriteByte('\n')
			case 't':
				current.WriteByte('\t')
			case 'r':
				current.WriteByte('\r')
			case 'b':
				current.WriteByte('\b')
			case 'f':
				current.WriteByte('\f')
			case '\\', '"', '\'':
				current.WriteByte(c)
			case '0', '1', '2', '3', '4', '5', '6', '7':
				// Octal escape, up to three digits.
				value := int(c - '0')
				for n := 0; n < 2 && i+1 < len(text); n++ {
					next := text[i+1]
					if next < '0' || next > '7' {
						break
					}
					value = value*8 + int(next-'0')
					i++
				}
				current.WriteByte(byte(value))
			default:
				current.WriteByte(c)
			}
			escaped = false
		case inString && c == '\\':
			escaped = true
		case inString && c == '"':
			docs = append(docs, []byte(current.String()))
			current.Reset()
			inString = false
		case inString:
			current.WriteByte(c)
		case c == '"':
			inString = true
		case c == ';':
			break scan
		}
	}

	if inString {
		return nil, fmt.Errorf("unterminated string in CDL output")
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("variable %q has no string values", variable)
	}
	return docs, nil
}
