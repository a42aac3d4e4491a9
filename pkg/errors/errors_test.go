package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "area error is unknown area",
			err:      &AreaError{Unknown: []string{"Atlantis"}},
			sentinel: ErrUnknownArea,
		},
		{
			name:     "duplicate id error",
			err:      &DuplicateIDError{Counts: map[int]int{42: 2}},
			sentinel: ErrDuplicateID,
		},
		{
			name:     "transition error",
			err:      &TransitionError{Stored: "retired", Scraped: "weird"},
			sentinel: ErrUnknownTransition,
		},
		{
			name:     "validation error is invalid input",
			err:      &ValidationError{Field: "id", Message: "negative"},
			sentinel: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestWrappedSentinelSurvivesFmtErrorf(t *testing.T) {
	err := fmt.Errorf("run aborted: %w", &AreaError{Unknown: []string{"X"}})
	assert.ErrorIs(t, err, ErrUnknownArea)

	var areaErr *AreaError
	assert.ErrorAs(t, err, &areaErr)
	assert.Equal(t, []string{"X"}, areaErr.Unknown)
}

func TestAPIErrorUnwrap(t *testing.T) {
	inner := New("boom")
	err := WrapAPI("github", 502, inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWrapHelpersNilPassthrough(t *testing.T) {
	assert.NoError(t, WrapIO("read", "/tmp/x", nil))
	assert.NoError(t, WrapParse("json", "x.json", nil))
	assert.NoError(t, WrapAPI("slack", 0, nil))
}
