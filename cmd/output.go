package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/oakwood-commons/dashx/internal/formatter"
)

// writeEncoded writes v as JSON, YAML or TOML. Values go through a JSON
// round trip first so every encoding uses the same field names, and nulls
// are dropped because TOML cannot carry them.
func writeEncoded(w io.Writer, v any, enc formatter.Encoding) error {
	plain, err := toPlain(v)
	if err != nil {
		return err
	}
	s, err := formatter.Encode(plain, enc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", enc, err)
	}
	_, err = io.WriteString(w, s)
	return err
}

func toPlain(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return dropNulls(out), nil
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(val)
		}
		return t
	case []any:
		out := t[:0]
		for _, val := range t {
			if val != nil {
				out = append(out, dropNulls(val))
			}
		}
		return out
	default:
		return v
	}
}
