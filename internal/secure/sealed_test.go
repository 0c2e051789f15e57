package secure

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealReveal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{"plain secret", "my-secret-password"},
		{"empty value", ""},
		{"binary-ish value", "\x00\xff\x10 "},
		{"multiline", "line1\nline2"},
		{"large value", string(make([]byte, 4096))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := Seal(tt.value)
			defer s.Destroy()

			got, err := s.Reveal()
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestRevealMultipleTimes(t *testing.T) {
	t.Parallel()

	s := Seal("test-secret")
	defer s.Destroy()

	for i := 0; i < 3; i++ {
		got, err := s.Reveal()
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, "test-secret", got)
	}
}

func TestDestroy(t *testing.T) {
	t.Parallel()

	s := Seal("secret-to-destroy")
	s.Destroy()
	s.Destroy()

	_, err := s.Reveal()
	assert.ErrorIs(t, err, ErrDestroyed)

	empty := Seal("")
	empty.Destroy()
	_, err = empty.Reveal()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestStringIsRedacted(t *testing.T) {
	t.Parallel()

	s := Seal("hunter2")
	defer s.Destroy()

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
}

func TestConcurrentReveal(t *testing.T) {
	t.Parallel()

	s := Seal("shared")
	defer s.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Reveal()
			assert.NoError(t, err)
			assert.Equal(t, "shared", got)
		}()
	}
	wg.Wait()
}
