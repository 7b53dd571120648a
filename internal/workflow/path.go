package workflow

import (
	"fmt"
	"strings"

	"imagine/internal/domain"
)

// Path addresses an object node by its key sequence.
type Path []string

// ParsePath splits a slash separated path such as "prompt/6/inputs/text".
func ParsePath(raw string) Path {
	var p Path
	for _, part := range strings.Split(strings.Trim(raw, "/"), "/") {
		if part = strings.TrimSpace(part); part != "" {
			p = append(p, part)
		}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// SetPath writes value at path inside doc, which the caller must own. Every
// node on the way to the last key has to exist and be an object; the last key
// itself is created or overwritten.
func SetPath(doc any, value any, path Path) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", domain.ErrMissingNode)
	}
	node, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: document root is not an object", domain.ErrMissingNode)
	}
	for i, key := range path[:len(path)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrMissingNode, path[:i+1])
		}
		node = next
	}
	node[path[len(path)-1]] = value
	return nil
}

// Lookup returns the value stored at path, if any.
func Lookup(doc any, path Path) (any, bool) {
	cur := doc
	for _, key := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = node[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}
