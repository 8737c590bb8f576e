package types

import (
	"encoding/json"
	"fmt"
)

// CollectedPage pairs a visited URL with its extracted record. It encodes
// as the two-element array [url, record].
type CollectedPage struct {
	URL  string
	Page PageRecord
}

// MarshalJSON encodes the pair as a JSON array.
func (c CollectedPage) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.URL, c.Page})
}

// UnmarshalJSON decodes the [url, record] array form.
func (c *CollectedPage) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding collected page: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding collected page: expected [url, record], got %d elements", len(pair))
	}

	var out CollectedPage
	if err := json.Unmarshal(pair[0], &out.URL); err != nil {
		return fmt.Errorf("decoding collected page url: %w", err)
	}
	if err := json.Unmarshal(pair[1], &out.Page); err != nil {
		return fmt.Errorf("decoding collected page record: %w", err)
	}
	*c = out
	return nil
}
