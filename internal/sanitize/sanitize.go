// Package sanitize strips markup from user-supplied habit text using a
// strict bluemonday policy.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// maxPasses bounds how many layers of entity encoding Text unwraps.
const maxPasses = 8

// Text removes every HTML element from s and returns plain text with
// entities decoded and surrounding whitespace trimmed. Decoding can expose
// markup that was entity-encoded, so stripping repeats until the text is
// stable. Input still changing after maxPasses is returned encoded.
func Text(s string) string {
	if s == "" {
		return ""
	}
	p := getPolicy()
	for range maxPasses {
		stripped := p.Sanitize(s)
		decoded := html.UnescapeString(stripped)
		if decoded == s {
			return strings.TrimSpace(decoded)
		}
		s = decoded
	}
	return strings.TrimSpace(p.Sanitize(s))
}
