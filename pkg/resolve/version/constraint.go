// Package version classifies and resolves AGPM dependency version
// constraints: exact SHAs, named refs (tags/branches), semver ranges, and
// namespaced wildcards, against the tags/branches/refs exposed by a Git
// source.
package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Kind tags the shape of a classified constraint.
type Kind int

const (
	KindExactSha Kind = iota
	KindNamedRef
	KindWildcard
	KindSemver
)

var hexSHA = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Constraint is a classified version constraint, retaining the original
// user-supplied string for error messages and deterministic lockfile
// output.
type Constraint struct {
	Kind      Kind
	Raw       string // original string, as written in the manifest
	Namespace string // optional "<ns>-" prefix, without the trailing dash
	Sha       string // set when Kind == KindExactSha
	Ref       string // set when Kind == KindNamedRef
	Range     string // set when Kind == KindSemver (without namespace prefix)
}

// Classify parses a manifest version string into a Constraint. Ordered
// first-match rules: exact 40-hex sha, wildcard ("*" or "<ns>-*"), semver
// range (leading operator or comma, after splitting an optional "<ns>-"
// prefix), else a named ref (tag or branch).
func Classify(raw string) Constraint {
	if hexSHA.MatchString(raw) {
		return Constraint{Kind: KindExactSha, Raw: raw, Sha: strings.ToLower(raw)}
	}

	ns, rest := splitNamespace(raw)

	if rest == "*" {
		return Constraint{Kind: KindWildcard, Raw: raw, Namespace: ns}
	}

	if looksLikeSemverRange(rest) {
		return Constraint{Kind: KindSemver, Raw: raw, Namespace: ns, Range: rest}
	}

	return Constraint{Kind: KindNamedRef, Raw: raw, Ref: raw}
}

// splitNamespace splits a "<ns>-<rest>" monorepo-tag prefix off raw, if
// raw contains a hyphen and what follows the first hyphen still looks like
// a version expression (semver range or "*"). Returns ("", raw) if no split
// applies.
func splitNamespace(raw string) (ns, rest string) {
	idx := strings.Index(raw, "-")
	if idx <= 0 || idx == len(raw)-1 {
		return "", raw
	}
	candidate := raw[idx+1:]
	if candidate == "*" || looksLikeSemverRange(candidate) {
		return raw[:idx], candidate
	}
	return "", raw
}

func looksLikeSemverRange(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s[:1], "^~><=") {
		return true
	}
	return strings.Contains(s, ",")
}

// SatisfiedBy reports whether tagVersion (already parsed) satisfies a
// semver-range constraint. Only valid for Kind == KindSemver.
func (c Constraint) SatisfiedBy(v *semver.Version) bool {
	constraint, err := semver.NewConstraint(c.Range)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

// ParseTagVersion strips a single leading "v"/"V" and parses the remainder
// as semver. Tags that are not semver-shaped return (nil, false) rather
// than an error, so non-semver tags are silently excluded from semver
// matching while remaining usable as named refs.
func ParseTagVersion(tag string) (*semver.Version, bool) {
	trimmed := tag
	if len(trimmed) > 0 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}
	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return nil, false
	}
	return v, true
}

// StripNamespace removes a "<ns>-" prefix from tag if ns is non-empty and
// tag carries that exact prefix; otherwise returns tag unchanged.
func StripNamespace(tag, ns string) (stripped string, ok bool) {
	if ns == "" {
		return tag, true
	}
	prefix := ns + "-"
	if !strings.HasPrefix(tag, prefix) {
		return "", false
	}
	return strings.TrimPrefix(tag, prefix), true
}
