package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/skillflow/pkg/domain"
)

// Metadata is the frontmatter of a response document.
type Metadata = map[string]any

// Responses adapts a Loam repository to ports.ResponseSource.
//
// Each document holds the responses of one group. For "Launch.md":
//
//	---
//	say: Welcome back, {{.name}}!
//	card:
//	  title: Menu
//	---
//
// the key "Launch.say" resolves the say field, "Launch.card" the card map and
// "Launch" the document body (or the whole frontmatter when the body is empty).
type Responses struct {
	Repo *loam.TypedRepository[Metadata]
}

// New creates a new Loam response source.
func New(repo *loam.TypedRepository[Metadata]) *Responses {
	return &Responses{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path and wraps it.
func Open(path string) (*Responses, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// Strict mode keeps numbers as json.Number across JSON and YAML documents.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[Metadata](repo)), nil
}

// Lookup resolves a dotted key against a document.
func (r *Responses) Lookup(ctx context.Context, key string) (any, error) {
	docID, path, _ := strings.Cut(key, ".")
	if docID == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
	}

	doc, err := r.Repo.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTemplateNotFound, key, err)
	}

	if path == "" {
		if body := strings.TrimSpace(doc.Content); body != "" {
			return body, nil
		}
		if len(doc.Data) > 0 {
			return normalize(doc.Data), nil
		}
		return nil, fmt.Errorf("%w: %s (empty document)", domain.ErrTemplateNotFound, key)
	}

	var cur any = doc.Data
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
		}
		if cur, ok = m[part]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
		}
	}
	return normalize(cur), nil
}

// Keys lists the documents available in the repository, without extension.
func (r *Responses) Keys(ctx context.Context) ([]string, error) {
	docs, err := r.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := trimExtension(doc.ID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

// Watch implements ports.Watchable.
func (r *Responses) Watch(ctx context.Context) (<-chan string, error) {
	events, err := r.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any: // YAML often decodes to this
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize converts YAML-decoded maps so templates and JSON encoding see
// string keys only.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
