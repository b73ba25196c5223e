package briefs

import (
	"crypto/rand"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// Slugs are short random identifiers used in shareable brief URLs.
const (
	slugLength   = 10
	slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]{10}$`)

// NewSlug returns a random URL-safe slug.
func NewSlug() string {
	out := make([]byte, 0, slugLength)
	raw := make([]byte, slugLength)
	for len(out) < slugLength {
		if _, err := rand.Read(raw); err != nil {
			// crypto/rand failure means the platform is broken; nothing
			// sensible to return, so panic like uuid.NewString does.
			panic(err)
		}
		out = appendSlugChars(out, raw)
	}
	return string(out[:slugLength])
}

// appendSlugChars maps random bytes onto the slug alphabet. Bytes beyond the
// largest multiple of the alphabet size are rejected so every character is
// equally likely.
func appendSlugChars(dst, raw []byte) []byte {
	limit := byte(256 - 256%len(slugAlphabet))
	for _, b := range raw {
		if b >= limit {
			continue
		}
		dst = append(dst, slugAlphabet[int(b)%len(slugAlphabet)])
	}
	return dst
}

// ValidateSlug checks that slug is a well-formed random slug.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "invalid brief slug"),
			errors.Fields{"slug": slug})
	}
	return nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds a display name into a stable URL fragment: diacritics are
// stripped, everything non-alphanumeric collapses to single hyphens.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	folded = strings.ToLower(folded)
	folded = nonSlugChars.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-")
}

// ShareSlug renders the human-readable share URL fragment for a brief: the
// slugified display name joined to the random slug, e.g.
// "summer-campaign-x7k2m9p4q1". Briefs whose names fold to nothing fall back
// to the bare slug.
func (b *Brief) ShareSlug() string {
	name := Slugify(b.Name)
	if name == "" {
		return b.Slug
	}
	return name + "-" + b.Slug
}

// ParseShareSlug extracts the random slug from a share URL fragment. Both
// the bare slug and the pretty "name-slug" form are accepted, so share links
// survive brief renames.
func ParseShareSlug(s string) (string, error) {
	if len(s) < slugLength {
		return "", ValidateSlug(s)
	}

	tail := s[len(s)-slugLength:]
	if err := ValidateSlug(tail); err != nil {
		return "", err
	}
	if len(s) > slugLength && s[len(s)-slugLength-1] != '-' {
		return "", errors.WithFields(
			errors.New(errors.InvalidInput, "invalid brief slug"),
			errors.Fields{"slug": s})
	}
	return tail, nil
}
