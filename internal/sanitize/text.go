// Package sanitize strips markup from user-supplied text fields.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML and surrounding whitespace and returns plain text.
// Entities escaped by the policy are decoded again so that "Rock & Roll"
// survives unchanged.
// Use for: event titles, locations, user names.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// Email trims and lower-cases an address.
func Email(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
