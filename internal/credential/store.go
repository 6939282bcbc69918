package credential

import "strings"

// Store holds the speech-to-text API credential. Implementations must be safe
// for concurrent use: the batch processor reads it from its own goroutine while
// the API mutates it.
type Store interface {
	Has() bool
	Get() (string, bool)
	Set(value string) error
	Clear()
}

const minLength = 16

// Validate performs a format-only check on a candidate credential. No network
// call is made; the transcription service is the authority on whether a key
// actually works.
func Validate(value string) bool {
	v := strings.TrimSpace(value)
	if len(v) < minLength {
		return false
	}
	return !strings.ContainsAny(v, " \t\r\n")
}
