package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclinerAlwaysDeclines(t *testing.T) {
	idx, ok, err := Decliner{}.Select(context.Background(), "pick", []string{"a", "b"}, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, idx)
}

func TestForMode(t *testing.T) {
	assert.IsType(t, Terminal{}, ForMode("always"))
	assert.IsType(t, Decliner{}, ForMode("never"))
	assert.NotNil(t, ForMode("auto"))
}
