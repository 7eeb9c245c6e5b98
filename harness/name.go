package harness

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// maxNameLength is the maximum length of a generated database name. It is the
// smaller of the PostgreSQL (63) and MySQL (64) identifier limits.
const maxNameLength = 63

// UniqueName returns a database name derived from testID that is unlikely to
// collide with names generated by concurrently running tests.
//
// The result has the form "<testID>_<suffix>", where suffix is a random 32-bit
// integer. testID is treated as untrusted: it is lowercased, any character
// other than [a-z0-9_] is replaced with an underscore, and it is truncated so
// that the entire name is a valid identifier on all supported engines.
func UniqueName(testID string) string {
	suffix := strconv.FormatUint(uint64(rand.Uint32()), 10)
	prefix := sanitize(testID, maxNameLength-len(suffix)-1)
	return prefix + "_" + suffix
}

// sanitize returns a lowercase identifier of at most n bytes derived from s.
func sanitize(s string, n int) string {
	var b strings.Builder
	b.Grow(min(len(s)+2, n))

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
		default:
			c = '_'
		}

		if i == 0 && c >= '0' && c <= '9' {
			b.WriteString("t_")
		}

		b.WriteByte(c)
	}

	if b.Len() == 0 {
		b.WriteString("test")
	}

	id := b.String()
	if len(id) > n {
		id = id[:n]
	}

	return id
}
