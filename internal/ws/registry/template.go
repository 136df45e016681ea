package registry

import "strings"

// splitTemplate splits a registered path into its '/'-delimited segments and
// reports whether any segment carries a {name} placeholder.
func splitTemplate(path string) (segments []string, isTemplate bool) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{""}, false
	}
	segments = strings.Split(trimmed, "/")
	for _, s := range segments {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 {
			isTemplate = true
			break
		}
	}
	return segments, isTemplate
}

// matchTemplate binds the concrete path segments against a template's
// segments, returning the path parameters on a match. A literal template
// segment must match its concrete counterpart exactly; a {name} segment
// binds to whatever the concrete path carries there.
func matchTemplate(templateSegs, pathSegs []string) (map[string]string, bool) {
	if len(templateSegs) != len(pathSegs) {
		return nil, false
	}
	params := make(map[string]string, len(templateSegs))
	for i, t := range templateSegs {
		if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") && len(t) > 2 {
			params[t[1:len(t)-1]] = pathSegs[i]
			continue
		}
		if t != pathSegs[i] {
			return nil, false
		}
	}
	return params, true
}
