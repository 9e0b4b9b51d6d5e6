package document

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewError(KindIncompleteSignatures, "Masih ada 2 penanda tangan")
	assert.True(t, errors.Is(err, ErrIncompleteSignatures))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("finalize: %w", err)
	assert.True(t, errors.Is(wrapped, ErrIncompleteSignatures))
	assert.Equal(t, KindIncompleteSignatures, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "Masih ada 2 penanda tangan", err.Error())
}
