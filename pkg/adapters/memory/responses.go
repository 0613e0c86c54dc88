package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/skillflow/pkg/domain"
)

// Responses implements ports.ResponseSource over a nested map.
// Keys are dotted paths ("Launch.say" resolves tree["Launch"]["say"]).
type Responses struct {
	mu   sync.RWMutex
	tree map[string]any
}

// NewResponses creates a response source over the given tree.
func NewResponses(tree map[string]any) *Responses {
	if tree == nil {
		tree = make(map[string]any)
	}
	return &Responses{tree: tree}
}

// Lookup resolves a dotted key.
func (r *Responses) Lookup(ctx context.Context, key string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.tree[key]; ok {
		return v, nil
	}

	var cur any = r.tree
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
		}
		cur, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
		}
	}
	return cur, nil
}

// Set registers a value under a top-level key, replacing any previous one.
func (r *Responses) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree[key] = value
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
