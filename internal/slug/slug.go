// Package slug generates and validates short link identifiers.
package slug

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet is lowercase-only; generated slugs must survive channels that
// fold case. Custom slugs may still be mixed case.
const alphabet = "abcdefghijklmnopqrstuvwxyz"

// DefaultLength is the length of generated slugs.
const DefaultLength = 6

var customSlugRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

// Generate draws length symbols uniformly at random from the slug alphabet
// using a cryptographically secure source. The result is a candidate only;
// uniqueness is enforced by the store on insert.
func Generate(length int) (string, error) {
	const op = "slug.Generate"

	s, err := gonanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate slug: %w", op, err)
	}

	return s, nil
}

// IsValid reports whether candidate is an acceptable custom slug:
// 1-50 characters from [A-Za-z0-9_-].
func IsValid(candidate string) bool {
	return customSlugRe.MatchString(candidate)
}
