// Package flatten converts nested key/value documents into flat maps keyed by
// dot-joined paths and back. Only plain objects (map[string]any) are
// descended into; arrays, scalars and nulls are leaves.
package flatten

import (
	"fmt"
	"sort"
	"strings"
)

const Separator = "."

// FlatMap maps a dot-joined path to a leaf value.
type FlatMap map[string]any

// Keys returns the paths in lexical order.
func (f FlatMap) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten emits one entry per leaf of obj. A nested empty object is emitted
// as a leaf so that it survives Unflatten; the top-level object itself
// flattens to an empty map when empty.
func Flatten(obj map[string]any, prefix string) FlatMap {
	out := make(FlatMap)
	flattenInto(out, obj, prefix)
	return out
}

func flattenInto(out FlatMap, obj map[string]any, prefix string) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + Separator + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = v
	}
}

// KeyError reports an object key that cannot be told apart from a path
// once flattened, such as VS Code's "editor.fontSize".
type KeyError struct {
	Path string
	Key  string
}

func (e *KeyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("key %q contains %q and cannot be edited as a field", e.Key, Separator)
	}
	return fmt.Sprintf("key %q under %q contains %q and cannot be edited as a field", e.Key, e.Path, Separator)
}

// CheckKeys returns a *KeyError for the first key in obj, at any depth, that
// contains Separator. Flatten is only lossless for documents that pass.
func CheckKeys(obj map[string]any) error {
	return checkKeys(obj, "")
}

func checkKeys(obj map[string]any, prefix string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, Separator) {
			return &KeyError{Path: prefix, Key: k}
		}
		nested, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + Separator + k
		}
		if err := checkKeys(nested, path); err != nil {
			return err
		}
	}
	return nil
}

// ShapeConflictError reports two flat paths that need the same node to be
// both a leaf and an object, e.g. "a" and "a.b".
type ShapeConflictError struct {
	Path  string
	Other string
}

func (e *ShapeConflictError) Error() string {
	return fmt.Sprintf("shape conflict: %q is a leaf but %q needs it to be an object", e.Path, e.Other)
}

type node struct {
	leaf     bool
	path     string
	value    any
	children map[string]*node
}

func newObject(path string) *node {
	return &node{path: path, children: make(map[string]*node)}
}

// Unflatten rebuilds the nested document described by flat. Conflicting
// shapes are rejected with *ShapeConflictError whatever the map order.
func Unflatten(flat FlatMap) (map[string]any, error) {
	root := newObject("")
	for _, path := range flat.Keys() {
		if err := root.insert(path, flat[path]); err != nil {
			return nil, err
		}
	}
	return root.build(), nil
}

func (n *node) insert(path string, value any) error {
	segments := strings.Split(path, Separator)
	cur := n
	for i, seg := range segments {
		last := i == len(segments)-1
		child, ok := cur.children[seg]
		if last {
			if ok {
				// child is an object built by a longer path
				return &ShapeConflictError{Path: path, Other: child.anyLeafPath()}
			}
			cur.children[seg] = &node{leaf: true, path: path, value: value}
			return nil
		}
		if !ok {
			child = newObject(strings.Join(segments[:i+1], Separator))
			cur.children[seg] = child
		} else if child.leaf {
			return &ShapeConflictError{Path: child.path, Other: path}
		}
		cur = child
	}
	return nil
}

func (n *node) anyLeafPath() string {
	if n.leaf {
		return n.path
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p := n.children[k].anyLeafPath(); p != "" {
			return p
		}
	}
	return n.path
}

func (n *node) build() map[string]any {
	out := make(map[string]any, len(n.children))
	for k, c := range n.children {
		if c.leaf {
			out[k] = c.value
		} else {
			out[k] = c.build()
		}
	}
	return out
}
