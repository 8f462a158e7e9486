package version

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
)

// candidateTag pairs a tag name with its parsed semver version, after
// namespace stripping.
type candidateTag struct {
	name string
	ver  *semver.Version
}

// SelectTag resolves a Wildcard or Semver constraint against the given tag
// names, returning the chosen tag. Tie-break: highest version wins; among
// equal versions, lexically lowest tag name wins (stable).
func SelectTag(sourceName string, c Constraint, tags []string) (string, error) {
	candidates := make([]candidateTag, 0, len(tags))
	sawNamespacedTag := false

	for _, tag := range tags {
		stripped, ok := StripNamespace(tag, c.Namespace)
		if !ok {
			continue
		}
		sawNamespacedTag = true

		v, ok := ParseTagVersion(stripped)
		if !ok {
			continue // not semver-shaped; excluded from semver matching
		}
		candidates = append(candidates, candidateTag{name: tag, ver: v})
	}

	if c.Namespace != "" && !sawNamespacedTag {
		return "", agpmerrors.NoTagsWithPrefix(sourceName, c.Namespace)
	}

	if c.Kind == KindSemver {
		constraint, err := semver.NewConstraint(c.Range)
		if err != nil {
			return "", agpmerrors.NoTagSatisfies(sourceName, c.Raw)
		}
		filtered := candidates[:0:0]
		for _, cand := range candidates {
			if constraint.Check(cand.ver) {
				filtered = append(filtered, cand)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return "", agpmerrors.NoTagSatisfies(sourceName, c.Raw)
	}

	sort.Slice(candidates, func(i, j int) bool {
		cmp := candidates[i].ver.Compare(candidates[j].ver)
		if cmp != 0 {
			return cmp > 0 // highest version first
		}
		return candidates[i].name < candidates[j].name // lex-lowest tag wins the tie
	})

	return candidates[0].name, nil
}
