package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one table row. A keyed row maps header names to cells and is
// produced when the table has headers; a positional row is a plain cell
// sequence. Keyed rows keep header order through JSON encoding.
type Row struct {
	keyed bool
	keys  []string
	cells []string
}

// KeyedRow zips headers and cells by position, stopping at the shorter of
// the two. A repeated header keeps its first position and takes the later
// cell.
func KeyedRow(headers, cells []string) Row {
	r := Row{keyed: true, keys: []string{}, cells: []string{}}
	n := min(len(headers), len(cells))
	for i := 0; i < n; i++ {
		r.set(headers[i], cells[i])
	}
	return r
}

// PositionalRow wraps an ordered cell sequence.
func PositionalRow(cells []string) Row {
	return Row{cells: append([]string{}, cells...)}
}

func (r *Row) set(key, value string) {
	for i, k := range r.keys {
		if k == key {
			r.cells[i] = value
			return
		}
	}
	r.keys = append(r.keys, key)
	r.cells = append(r.cells, value)
}

// Keyed reports whether the row maps header names to cells.
func (r Row) Keyed() bool { return r.keyed }

// Keys returns the header names of a keyed row in order, or nil.
func (r Row) Keys() []string {
	if !r.keyed {
		return nil
	}
	return append([]string{}, r.keys...)
}

// Cells returns the cell values in order for either variant.
func (r Row) Cells() []string {
	return append([]string{}, r.cells...)
}

// Get looks up a cell of a keyed row by header name.
func (r Row) Get(key string) (string, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.cells[i], true
		}
	}
	return "", false
}

// Len returns the number of cells.
func (r Row) Len() int { return len(r.cells) }

// MarshalJSON encodes a keyed row as an object and a positional row as an array.
func (r Row) MarshalJSON() ([]byte, error) {
	if !r.keyed {
		if r.cells == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.cells)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.cells[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores either variant, keeping object key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding table row: %w", err)
	}

	switch tok {
	case json.Delim('['):
		var cells []string
		if err := json.Unmarshal(data, &cells); err != nil {
			return fmt.Errorf("decoding positional row: %w", err)
		}
		*r = PositionalRow(cells)
		return nil

	case json.Delim('{'):
		row := Row{keyed: true, keys: []string{}, cells: []string{}}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("decoding keyed row: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("decoding keyed row: unexpected key %v", keyTok)
			}
			var value string
			if err := dec.Decode(&value); err != nil {
				return fmt.Errorf("decoding keyed row value for %q: %w", key, err)
			}
			row.set(key, value)
		}
		*r = row
		return nil

	default:
		return fmt.Errorf("decoding table row: unexpected token %v", tok)
	}
}
