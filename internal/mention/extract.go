package mention

import "strings"

// Mentioned returns the users whose "@name" appears in content, ignoring
// case, each at most once and in candidate order.
func Mentioned(content string, candidates []UserIdentity) []UserIdentity {
	lowered := strings.ToLower(content)
	seen := make(map[string]struct{}, len(candidates))
	var out []UserIdentity
	for _, user := range candidates {
		if user.Name == "" {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		if strings.Contains(lowered, "@"+strings.ToLower(user.Name)) {
			seen[user.ID] = struct{}{}
			out = append(out, user)
		}
	}
	return out
}
