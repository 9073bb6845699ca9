package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	assert.True(t, r.Has("en"))
	assert.True(t, r.Has("de"))
	assert.False(t, r.Has("xx"))
	assert.Equal(t, len(DefaultCodes), len(r.Codes()))
}

func TestNewRegistry_CustomSet(t *testing.T) {
	r, err := NewRegistry([]string{"en", "ja"})
	require.NoError(t, err)

	assert.True(t, r.Has("ja"))
	assert.False(t, r.Has("de"))
}

func TestNewRegistry_NormalizesInput(t *testing.T) {
	r, err := NewRegistry([]string{" EN ", "De"})
	require.NoError(t, err)

	assert.True(t, r.Has("en"))
	assert.True(t, r.Has("DE"))
	assert.True(t, r.Has(" de "))
}

func TestNewRegistry_RejectsGarbage(t *testing.T) {
	_, err := NewRegistry([]string{"en", "@@invalid@@"})
	assert.Error(t, err)
}

func TestNewRegistry_RequiresDefault(t *testing.T) {
	_, err := NewRegistry([]string{"de", "fr"})
	assert.Error(t, err)
}

func TestRegistry_Codes_Sorted(t *testing.T) {
	r, err := NewRegistry([]string{"ru", "en", "de"})
	require.NoError(t, err)

	assert.Equal(t, []string{"de", "en", "ru"}, r.Codes())
}
