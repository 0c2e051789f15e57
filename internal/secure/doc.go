// Package secure keeps fetched secret values encrypted in memory between the
// moment a provider returns them and the moment they are rendered.
//
// Values are sealed into memguard enclaves (XSalsa20Poly1305, mlocked where
// the platform allows it). A sealed value is opened exactly when the final
// result is assembled:
//
//	s := secure.Seal(value)
//	defer s.Destroy()
//
//	plain, err := s.Reveal()
//
// It does NOT protect against:
//
//   - Attackers with root access to the running process
//   - The rendered output, which is plaintext by definition
//   - Hardware-level attacks (cold boot, DMA)
//
// Call memguard.Purge (via Purge) before exiting to wipe all enclaves and
// their keys.
package secure
