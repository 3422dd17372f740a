package navigator

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a parsed path.
// Path example: overview.charts[0]["cost-by-region"]
type Segment interface {
	segment()
}

// Field is a bare identifier between dots.
type Field struct {
	Name string
}

// QuotedKey is a key written as ["key"]; it may contain dots or dashes.
type QuotedKey struct {
	Name string
}

// ArrayIndex is a numeric step like [0].
type ArrayIndex struct {
	Index int
}

func (Field) segment()      {}
func (QuotedKey) segment()  {}
func (ArrayIndex) segment() {}

// ParsePath splits a path into segments. Dots separate fields, brackets hold
// either an index or a quoted key. An unterminated bracket or an empty bracket
// is an error.
func ParsePath(input string) ([]Segment, error) {
	var segs []Segment
	i := 0
	for i < len(input) {
		switch ch := input[i]; ch {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(input[i:], ']')
			if end == -1 {
				return nil, fmt.Errorf("unterminated bracket at offset %d", i)
			}
			inner := strings.TrimSpace(input[i+1 : i+end])
			switch {
			case inner == "":
				return nil, fmt.Errorf("empty bracket at offset %d", i)
			case len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0]:
				segs = append(segs, QuotedKey{Name: inner[1 : len(inner)-1]})
			default:
				n, err := strconv.Atoi(inner)
				if err != nil {
					// bare word in brackets behaves like a field
					segs = append(segs, Field{Name: inner})
				} else {
					segs = append(segs, ArrayIndex{Index: n})
				}
			}
			i += end + 1
		default:
			j := i
			for j < len(input) && input[j] != '.' && input[j] != '[' {
				j++
			}
			if name := strings.TrimSpace(input[i:j]); name != "" {
				segs = append(segs, Field{Name: name})
			}
			i = j
		}
	}
	return segs, nil
}

// FormatPath rebuilds a path string from segments.
func FormatPath(segs []Segment) string {
	var b strings.Builder
	for idx, s := range segs {
		switch v := s.(type) {
		case Field:
			if idx > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v.Name)
		case QuotedKey:
			b.WriteString(`["`)
			b.WriteString(v.Name)
			b.WriteString(`"]`)
		case ArrayIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(v.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}
