package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpen(t *testing.T) {
	s := NewSealer("secret")

	sealed, err := s.Seal("upstream-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "upstream-token")

	again, err := s.Seal("upstream-token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "upstream-token", plain)
}

func TestOpenRejectsForeignOrBrokenValues(t *testing.T) {
	sealed, err := NewSealer("one").Seal("token")
	require.NoError(t, err)

	_, err = NewSealer("two").Open(sealed)
	assert.ErrorIs(t, err, ErrUnsealable)

	_, err = NewSealer("one").Open("not base64 !")
	assert.ErrorIs(t, err, ErrUnsealable)

	_, err = NewSealer("one").Open("c2hvcnQ")
	assert.ErrorIs(t, err, ErrUnsealable)
}
