package stringutil

import (
	"path"
	"strings"
)

// LookupName derives a resource's registry lookup-name from its
// manifest-relative path: the extension is stripped, and the leading path
// component is stripped if it equals typeDir (the resource type's canonical
// directory name). This preserves directory structure below that point so
// sibling directories don't collide, e.g. LookupName("snippets/utils/commit.md", "snippets")
// returns "utils/commit".
func LookupName(manifestPath, typeDir string) string {
	p := strings.TrimSuffix(manifestPath, path.Ext(manifestPath))
	p = strings.TrimPrefix(p, "./")

	if typeDir != "" {
		prefix := typeDir + "/"
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
		}
	}

	return p
}
