package verification

import (
	"regexp"
	"sort"
	"strings"
)

// CollisionPrefix is prepended to colliding symbols in submitted source.
const CollisionPrefix = "zz"

// stringLiteral matches Solidity string literals, which hold import paths.
var stringLiteral = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'`)

// =============================================================================
// Collision Mitigation
// =============================================================================

// RenameCollisions renames every symbol in collisions (whole words outside
// string literals) across all submitted source files so that the target's definition sorts
// first when the service picks among bytecode-identical candidates.
//
// The bundle is copied; the input is not modified. The target symbol itself
// is never renamed. Symbols are processed in sorted order so the output is
// the same for the same input.
//
// Example:
//
//	RenameCollisions(bundle, "Pool", []string{"PoolBase"})
//	// "contract PoolBase {" becomes "contract zzPoolBase {"
func RenameCollisions(bundle SourceBundle, target string, collisions []string) SourceBundle {
	out := bundle.Clone()
	if len(collisions) == 0 {
		return out
	}

	names := make([]string, 0, len(collisions))
	seen := make(map[string]bool)
	for _, c := range collisions {
		if c == "" || c == target || seen[c] {
			continue
		}
		seen[c] = true
		names = append(names, c)
	}
	sort.Strings(names)

	for _, name := range names {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		for path, f := range out.Input.Sources {
			f.Content = replaceOutsideStrings(f.Content, re, CollisionPrefix+name)
			out.Input.Sources[path] = f
		}
	}
	return out
}

func replaceOutsideStrings(content string, re *regexp.Regexp, repl string) string {
	var b strings.Builder
	last := 0
	for _, loc := range stringLiteral.FindAllStringIndex(content, -1) {
		b.WriteString(re.ReplaceAllString(content[last:loc[0]], repl))
		b.WriteString(content[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(re.ReplaceAllString(content[last:], repl))
	return b.String()
}
