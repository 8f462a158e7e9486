// Package agpmerrors defines the stable error kinds AGPM's resolver,
// installer, and Git backend report, each carrying a structured payload and
// an optional remediation hint that Error() appends to its message.
package agpmerrors

import (
	"fmt"
	"os"
	"strings"
)

// Kind is a stable machine-checkable error category, independent of the
// prose in Error().
type Kind string

const (
	KindManifestMalformed          Kind = "manifest_malformed"
	KindSourceNotFound              Kind = "source_not_found"
	KindSourceUnauthenticated       Kind = "source_unauthenticated"
	KindSourceUnreachable           Kind = "source_unreachable"
	KindRefNotFound                 Kind = "ref_not_found"
	KindAmbiguousShortSha           Kind = "ambiguous_short_sha"
	KindNoTagSatisfies              Kind = "no_tag_satisfies"
	KindNoTagsWithPrefix            Kind = "no_tags_with_prefix"
	KindCircularDependency          Kind = "circular_dependency"
	KindVersionConflict             Kind = "version_conflict"
	KindTargetPathConflict          Kind = "target_path_conflict"
	KindIntegrityMismatch           Kind = "integrity_mismatch"
	KindResolutionDidNotConverge    Kind = "resolution_did_not_converge"
	KindIoFailure                   Kind = "io_failure"
	KindSkillSizeExceeded           Kind = "skill_size_exceeded"
)

// Error is the single error type AGPM's domain packages return. It carries
// a Kind for programmatic dispatch (CLI exit codes, test assertions) and a
// Hint for the remediation text shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	// Err wraps an underlying cause, if any (e.g. an os.PathError).
	Err error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ManifestMalformed reports a TOML/structure error in the manifest, with an
// optional source location detail.
func ManifestMalformed(detail string, err error) *Error {
	return &Error{Kind: KindManifestMalformed, Message: fmt.Sprintf("manifest is malformed: %s", detail), Err: err}
}

// SourceNotFound reports a manifest dependency referencing an undeclared
// source name.
func SourceNotFound(name string) *Error {
	return &Error{
		Kind:    KindSourceNotFound,
		Message: fmt.Sprintf("source %q is not declared in [sources]", name),
		Hint:    fmt.Sprintf("add a [sources.%s] entry with a url", name),
	}
}

// SourceUnauthenticated reports a Git transport failure attributable to
// missing or invalid credentials.
func SourceUnauthenticated(name string) *Error {
	return &Error{
		Kind:    KindSourceUnauthenticated,
		Message: fmt.Sprintf("source %q requires authentication", name),
		Hint:    "set GH_TOKEN or GITHUB_TOKEN, or run `gh auth login`",
	}
}

// SourceUnreachable reports a Git transport failure not attributable to
// authentication (DNS, network, host down).
func SourceUnreachable(name, url string, err error) *Error {
	return &Error{
		Kind:    KindSourceUnreachable,
		Message: fmt.Sprintf("source %q (%s) is unreachable", name, url),
		Err:     err,
	}
}

// RefNotFound reports a version constraint naming a ref (tag, branch, or
// SHA prefix) that does not resolve in the source's bare repo.
func RefNotFound(source, ref string) *Error {
	return &Error{
		Kind:    KindRefNotFound,
		Message: fmt.Sprintf("ref %q not found in source %q", ref, source),
	}
}

// AmbiguousShortSha reports a short SHA prefix matching more than one
// commit.
func AmbiguousShortSha(source, prefix string) *Error {
	return &Error{
		Kind:    KindAmbiguousShortSha,
		Message: fmt.Sprintf("short sha %q is ambiguous in source %q", prefix, source),
		Hint:    "use a longer prefix or the full 40-character sha",
	}
}

// NoTagSatisfies reports a semver constraint with no matching tag.
func NoTagSatisfies(source, rangeExpr string) *Error {
	return &Error{
		Kind:    KindNoTagSatisfies,
		Message: fmt.Sprintf("no tag in source %q satisfies %q", source, rangeExpr),
	}
}

// NoTagsWithPrefix reports a namespaced wildcard/semver constraint where no
// tag carries the required prefix.
func NoTagsWithPrefix(source, prefix string) *Error {
	return &Error{
		Kind:    KindNoTagsWithPrefix,
		Message: fmt.Sprintf("no tags with prefix %q in source %q", prefix, source),
	}
}

// CircularDependency reports a dependency cycle discovered during
// transitive extraction. path is the manifest-path stack at the point of
// detection, ending with the repeated entry.
func CircularDependency(path []string) *Error {
	return &Error{
		Kind:    KindCircularDependency,
		Message: fmt.Sprintf("circular dependency: %s", strings.Join(path, " -> ")),
	}
}

// VersionConflict reports two or more parents requiring a child at
// constraints with an empty intersection.
func VersionConflict(key string, requirers []string) *Error {
	return &Error{
		Kind:    KindVersionConflict,
		Message: fmt.Sprintf("version conflict for %s: required by %s", key, strings.Join(requirers, ", ")),
		Hint:    "widen one of the conflicting version constraints",
	}
}

// TargetPathConflict reports two resources with the same installed_at and
// different content.
func TargetPathConflict(path string, resources []string) *Error {
	return &Error{
		Kind:    KindTargetPathConflict,
		Message: fmt.Sprintf("install path %q claimed by conflicting resources: %s", path, strings.Join(resources, ", ")),
		Hint:    "set `target` or `filename` to disambiguate",
	}
}

// IntegrityMismatch reports a checksum that does not match what was
// recorded in the lockfile.
func IntegrityMismatch(expected, actual string) *Error {
	return &Error{
		Kind:    KindIntegrityMismatch,
		Message: fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, actual),
	}
}

// ResolutionDidNotConverge reports the backtracking loop's safety bound
// being hit without reaching a fixpoint.
func ResolutionDidNotConverge(iterations int) *Error {
	return &Error{
		Kind:    KindResolutionDidNotConverge,
		Message: fmt.Sprintf("resolution did not converge after %d iterations", iterations),
	}
}

// IoFailureKind distinguishes I/O failure subtypes.
type IoFailureKind string

const (
	IoPermissionDenied IoFailureKind = "permission_denied"
	IoNotFound         IoFailureKind = "not_found"
	IoDiskFull         IoFailureKind = "disk_full"
	IoOther            IoFailureKind = "other"
)

// ClassifyIoErr maps a stdlib error to an IoFailureKind, for callers
// constructing an IoFailure from an os/io error.
func ClassifyIoErr(err error) IoFailureKind {
	switch {
	case os.IsNotExist(err):
		return IoNotFound
	case os.IsPermission(err):
		return IoPermissionDenied
	default:
		return IoOther
	}
}

// IoFailure reports a filesystem operation failure.
func IoFailure(op, path string, sub IoFailureKind, err error) *Error {
	return &Error{
		Kind:    KindIoFailure,
		Message: fmt.Sprintf("%s failed on %q: %s", op, path, sub),
		Err:     err,
	}
}

// SkillSizeExceeded reports a skill directory exceeding configured
// byte/file-count limits.
func SkillSizeExceeded(name string, bytes, files, maxBytes, maxFiles int64) *Error {
	return &Error{
		Kind: KindSkillSizeExceeded,
		Message: fmt.Sprintf(
			"skill %q exceeds limits: %d bytes (max %d), %d files (max %d)",
			name, bytes, maxBytes, files, maxFiles,
		),
	}
}

// Warning is a non-fatal diagnostic accumulated during resolution or
// installation and flushed once at the end of a run.
type Warning struct {
	Kind    string
	Message string
}

func (w Warning) String() string { return w.Message }
