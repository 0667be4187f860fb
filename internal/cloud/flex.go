package cloud

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString decodes a JSON string, number or bool into its text form.
// The vendor API is inconsistent about quoting ids and ports.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	// Numbers and bools keep their literal text.
	*f = flexString(b)
	return nil
}

// flexInt decodes a JSON number or numeric string. Anything else decodes
// to zero without error.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	if x, err := strconv.ParseFloat(string(s), 64); err == nil {
		*f = flexInt(int64(x))
		return nil
	}
	*f = 0
	return nil
}
