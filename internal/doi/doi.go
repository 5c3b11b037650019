// Package doi normalizes DOI identifiers and models PDF version labels.
package doi

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoDOI indicates the input contained no recognizable DOI.
var ErrNoDOI = errors.New("no valid DOI found")

var doiPattern = regexp.MustCompile(`10\.\d+/\S+`)

// Normalize extracts and canonicalizes a DOI from a raw string. The result is
// lowercase, starts at the "10." prefix, and contains no NUL bytes.
// Normalize is idempotent: applying it to its own output returns the same value.
func Normalize(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrNoDOI
	}
	match := doiPattern.FindString(raw)
	if match == "" {
		return "", ErrNoDOI
	}
	return strings.ReplaceAll(match, "\x00", ""), nil
}

// Version identifies which manuscript version a PDF represents.
type Version string

// Recognized manuscript versions.
const (
	VersionPublished Version = "published"
	VersionAccepted  Version = "accepted"
	VersionSubmitted Version = "submitted"
)

// ParseVersion matches a version label inside a free-form version string,
// e.g. "publishedVersion" or "acceptedVersion". Unrecognized input defaults
// to the published version.
func ParseVersion(s string) Version {
	lower := strings.ToLower(s)
	for _, v := range []Version{VersionPublished, VersionAccepted, VersionSubmitted} {
		if strings.Contains(lower, string(v)) {
			return v
		}
	}
	return VersionPublished
}

// KeyPrefix returns the storage key prefix for this version. The published
// version has no prefix; others are tagged so they never collide.
func (v Version) KeyPrefix() string {
	if v == VersionPublished || v == "" {
		return ""
	}
	return string(v) + "_"
}
