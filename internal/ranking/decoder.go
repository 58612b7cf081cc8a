package ranking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// excerptLen caps how much raw scorer output is echoed back in a decode error
const excerptLen = 200

// Decode parses stdout as exactly one JSON value and returns it verbatim. Surrounding
// whitespace is allowed; anything after the value is not. No schema is imposed.
func Decode(stdout []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, &Error{Kind: KindDecode, Message: "scorer output is empty"}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, decodeError(trimmed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeError(trimmed, fmt.Errorf("unexpected data after JSON value"))
	}

	return raw, nil
}

func decodeError(output []byte, err error) *Error {
	return &Error{
		Kind:    KindDecode,
		Message: "scorer output is not valid JSON",
		Err:     fmt.Errorf("%w (output: %q)", err, truncate(output, excerptLen)),
	}
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
