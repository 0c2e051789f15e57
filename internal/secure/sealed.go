package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when revealing a value after Destroy.
var ErrDestroyed = errors.New("secure: sealed value has been destroyed")

// Sealed holds one secret string encrypted at rest in memory.
//
// memguard refuses to create an enclave for empty input, so an empty value is
// tracked without an enclave.
type Sealed struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// Seal copies value into a protected enclave. The copy made for memguard is
// wiped by memguard once sealed.
func Seal(value string) *Sealed {
	if value == "" {
		return &Sealed{empty: true}
	}
	return &Sealed{enclave: memguard.NewEnclave([]byte(value))}
}

// Reveal decrypts the value. The returned string is ordinary Go memory.
func (s *Sealed) Reveal() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return "", ErrDestroyed
	}
	if s.empty {
		return "", nil
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is idempotent.
func (s *Sealed) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

// String never exposes the plaintext.
func (s *Sealed) String() string {
	return "[REDACTED]"
}

// Purge wipes every enclave and the memguard session key. Call it once at
// process exit.
func Purge() {
	memguard.Purge()
}
