package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// aspectLabelRe matches a single dot-separated label within an aspect string:
// lowercase alphanumeric, hyphens allowed in the middle.
var aspectLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Aspect checks that a string is safe for use as a transport aspect
// (a reverse-DNS-style namespace such as "akita.wais.discovery.v1"): dot
// separated lowercase labels, each DNS-label safe. A string that passes
// cannot carry protocol-prefix delimiters or control characters into a
// transport protocol ID built from it. The wais commands do not call it on
// the configured discovery aspect.
func Aspect(aspect string) error {
	if aspect == "" {
		return fmt.Errorf("%w: aspect cannot be empty", ErrInvalidAspect)
	}
	for _, label := range strings.Split(aspect, ".") {
		if !aspectLabelRe.MatchString(label) {
			return fmt.Errorf("%w: %q must be dot-separated lowercase alphanumeric labels (hyphens allowed mid-label)", ErrInvalidAspect, aspect)
		}
	}
	return nil
}
