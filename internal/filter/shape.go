package filter

import (
	"fmt"
	"strings"
)

// Shape renders expr with every literal replaced by "?", keeping column
// names, operators and grouping. Cell values typed into a filter never
// appear in the result, so it is safe to keep in logs and history.
func Shape(expr string) string {
	tokens, err := Tokenize(expr)
	if err != nil {
		return fmt.Sprintf("<invalid, %d chars>", len([]rune(expr)))
	}

	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Type {
		case EOF:
		case STRING, NUMBER:
			parts = append(parts, "?")
		case IDENTIFIER:
			if tok.Quoted {
				parts = append(parts, "`"+tok.Literal+"`")
			} else {
				parts = append(parts, tok.Literal)
			}
		default:
			parts = append(parts, tok.Type.String())
		}
	}
	return strings.Join(parts, " ")
}
