package ranking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "candidates",
			err:      &Error{Kind: KindExecutableNotFound, Message: "no scorer executable found", Candidates: []string{"python3", "python"}},
			expected: "no scorer executable found (tried: python3, python)",
		},
		{
			name:     "stderr is trimmed",
			err:      &Error{Kind: KindExecutionFailed, Message: "scorer exited with status 1", Stderr: "model unavailable\n"},
			expected: "scorer exited with status 1: model unavailable",
		},
		{
			name:     "wrapped cause",
			err:      &Error{Kind: KindInternal, Message: "failed to create artifact", Err: errors.New("disk full")},
			expected: "failed to create artifact: disk full",
		},
		{
			name:     "bare",
			err:      validationError("missing idea or file"),
			expected: "missing idea or file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPayloadTooLarge, KindOf(payloadTooLarge("exceeds configured maximum")))
	assert.Equal(t, KindDecode, KindOf(fmt.Errorf("wrapped: %w", &Error{Kind: KindDecode})))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	cause := errors.New("root cause")
	assert.ErrorIs(t, internalError("boom", cause), cause)
}
