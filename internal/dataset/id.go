package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	emailIDRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	nameIDRe  = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)
)

// SourceID derives a stable, non-reversible identifier for a résumé from its
// raw text: a hash of the first email address when one exists, else of the
// first capitalized name pair, else of the whole content. The raw value never
// appears in the identifier.
func SourceID(raw string) string {
	if m := emailIDRe.FindString(raw); m != "" {
		return "email-" + shortHash(m, 8)
	}
	if m := nameIDRe.FindString(raw); m != "" {
		return "name-" + shortHash(m, 8)
	}
	return "resume-" + shortHash(raw, 12)
}

// JDID identifies a job description. Short single-line texts, typically
// category labels, are used as-is; anything longer is hashed.
func JDID(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if len(t) <= 40 && !strings.Contains(t, "\n") {
		return t
	}
	return "jd-" + shortHash(t, 8)
}

func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}
