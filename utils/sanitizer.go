package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans article HTML downloaded from a provider
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer for feed article bodies. UGC rules keep the
// usual formatting and media tags and strip scripts, frames and handlers.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.AllowAttrs("loading").Matching(bluemonday.Paragraph).OnElements("img")
	policy.AllowElements("figure", "figcaption", "picture", "source")
	policy.AllowAttrs("srcset", "type").OnElements("source")

	return &Sanitizer{policy: policy}
}

// SanitizeHTML sanitizes content and trims surrounding whitespace
func (s *Sanitizer) SanitizeHTML(content string) string {
	if content == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(content))
}
