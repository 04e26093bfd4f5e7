// internal/lobby/id.go
package lobby

import "math/rand/v2"

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// IDGenerator mints a candidate lobby id. It makes no uniqueness promise; the
// Registry retries until the candidate is not live.
type IDGenerator func() string

// GenerateID returns an id of the form "k3x9-a0qz": eight characters from
// [a-z0-9] with a dash after the fourth, short enough to read out to a friend.
func GenerateID() string {
	b := make([]byte, 0, 9)
	for i := 0; i < 8; i++ {
		b = append(b, idAlphabet[rand.IntN(len(idAlphabet))])
		if i == 3 {
			b = append(b, '-')
		}
	}
	return string(b)
}
