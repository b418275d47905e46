package gateway

import "strings"

// ComposePath joins the registered base path with the caller-chosen call
// path. The call path must be non-empty and start with "/". Duplicate slashes
// are collapsed and ".." segments rejected, so a composed path can never
// escape the registered host or smuggle in an authority of its own.
func ComposePath(basePath, callPath string) (string, error) {
	if callPath == "" {
		return "", &PathError{Path: callPath, Reason: "must not be empty"}
	}
	if !strings.HasPrefix(callPath, "/") {
		return "", &PathError{Path: callPath, Reason: "must start with /"}
	}

	joined := collapseSlashes(basePath + callPath)
	for _, seg := range strings.Split(joined, "/") {
		if seg == ".." {
			return "", &PathError{Path: callPath, Reason: "traversal segments are not allowed"}
		}
	}
	return joined, nil
}

func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	var prev byte
	for i := 0; i < len(p); i++ {
		if p[i] == '/' && prev == '/' {
			continue
		}
		b.WriteByte(p[i])
		prev = p[i]
	}
	return b.String()
}
