package repository

import (
	"sort"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so the value matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// containsPattern wraps an escaped value for a substring LIKE match.
func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

// membersKey returns the canonical identity of a thread's member set.
func membersKey(memberIDs []string) (string, []string) {
	seen := make(map[string]struct{}, len(memberIDs))
	uniq := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ","), uniq
}
