package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store_admin/internal/pkg/apierr"
)

func TestSignOutIsOneWayAndRunsHooksOnce(t *testing.T) {
	s := New("s-1", "admin@example.com", "upstream")

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "upstream", token)

	calls := 0
	s.OnSignOut(func(reason string) {
		calls++
		assert.Equal(t, "upstream 401", reason)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SignOut("upstream 401")
		}()
	}
	wg.Wait()
	s.SignOut("user request")

	assert.Equal(t, 1, calls)
	out, reason := s.SignedOut()
	assert.True(t, out)
	assert.Equal(t, "upstream 401", reason)

	_, err = s.Token()
	assert.True(t, apierr.IsAuth(err))

	late := ""
	s.OnSignOut(func(reason string) { late = reason })
	assert.Equal(t, "upstream 401", late)
}
