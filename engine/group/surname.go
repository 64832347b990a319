package group

import (
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/WessleyAI/vk-insights/engine/domain"
)

const (
	suffixes = `(?:ov|ev|in|skiy|sky|iy|ova|eva|ina|skaya|aya)`
	// Unicode-aware stand-ins for \b and \w, which are ASCII-only in RE2.
	word     = `[\p{L}\p{N}_]`
	boundL   = `(?:^|[^\p{L}\p{N}_])`
	boundR   = `(?:$|[^\p{L}\p{N}_])`
)

var rootPattern = regexp.MustCompile(boundL + `(` + word + `+)` + suffixes + boundR)

// SameSurnameFamily yields the profiles whose surname shares target's root
// under the gendered suffix set, so Petrov finds Petrova. When
// target carries no known suffix, only exact surname matches are yielded.
func SameSurnameFamily(target string, profiles []domain.Profile) iter.Seq[domain.Profile] {
	target = capitalize(target)
	match := func(p domain.Profile) bool { return p.LastName == target }
	if m := rootPattern.FindStringSubmatch(target); m != nil {
		family := regexp.MustCompile(boundL + regexp.QuoteMeta(m[1]) + suffixes + boundR)
		match = func(p domain.Profile) bool { return family.MatchString(p.LastName) }
	}
	return func(yield func(domain.Profile) bool) {
		for _, p := range profiles {
			if match(p) && !yield(p) {
				return
			}
		}
	}
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
