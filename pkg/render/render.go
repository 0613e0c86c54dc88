// Package render resolves response keys into speech text or structured
// directive payloads using Go templates.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VariableFunc computes one template variable for a request.
type VariableFunc func(ctx context.Context, req *domain.Request) (any, error)

// Variables maps variable names to their producers.
type Variables map[string]VariableFunc

// Reserved data keys available to every template.
const (
	KeySlots   = "slots"
	KeySession = "session"
	KeyModel   = "model"
)

// orEmptyFunc is appended to every printing action so missing keys print
// nothing instead of "<no value>".
const orEmptyFunc = "orEmpty"

var funcMap = template.FuncMap{
	orEmptyFunc: func(v any) any {
		if v == nil {
			return ""
		}
		return v
	},
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"title":     titleCase,
	"join":      joinAny,
	"trimSpace": strings.TrimSpace,
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}

// Renderer looks response keys up and renders them against the turn data.
// It is safe for concurrent use.
type Renderer struct {
	responses ports.ResponseSource
	vars      Variables
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a renderer over a response source and a variable set.
func New(responses ports.ResponseSource, vars Variables, opts ...Option) *Renderer {
	r := &Renderer{
		responses: responses,
		vars:      vars,
		logger:    logging.NewNop(),
		cache:     make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// For returns a render function scoped to one request.
func (r *Renderer) For(req *domain.Request) domain.RenderFunc {
	return func(ctx context.Context, key string, bound map[string]any) (any, error) {
		return r.Render(ctx, key, req, bound)
	}
}

// Render resolves key and renders it. Strings are executed as templates,
// maps and slices are rendered element by element, other values pass through.
func (r *Renderer) Render(ctx context.Context, key string, req *domain.Request, bound map[string]any) (any, error) {
	raw, err := r.responses.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", key, err)
	}

	data, err := r.data(ctx, req, bound)
	if err != nil {
		return nil, err
	}

	out, err := r.renderValue(key, raw, data)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", key, err)
	}
	return out, nil
}

// data builds the template data for a request. Slots are copied to the top
// level first so they never shadow variables, bound values or the reserved
// keys.
func (r *Renderer) data(ctx context.Context, req *domain.Request, bound map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(r.vars)+len(bound)+3)

	if req != nil {
		for k, v := range req.Slots {
			data[k] = v
		}
	}

	names := make([]string, 0, len(r.vars))
	for name := range r.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := r.vars[name](ctx, req)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		data[name] = v
	}

	for k, v := range bound {
		data[k] = v
	}

	if req != nil {
		data[KeySlots] = req.Slots
		data[KeySession] = req.Session.Attributes
		data[KeyModel] = req.Model
	}
	return data, nil
}

func (r *Renderer) renderValue(path string, v any, data map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.execute(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := r.renderValue(path+"."+k, item, data)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := r.renderValue(fmt.Sprintf("%s[%d]", path, i), item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := r.execute(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *Renderer) execute(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := r.parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) parse(text string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[text]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	tmpl, err := template.New("response").Funcs(funcMap).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			blankMissing(t.Tree, t.Tree.Root)
		}
	}

	r.mu.Lock()
	r.cache[text] = tmpl
	r.mu.Unlock()
	r.logger.Debug("template cached", "size", len(text))
	return tmpl, nil
}

// Reset drops the parse cache. Call it after the response source changes.
func (r *Renderer) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*template.Template)
	r.mu.Unlock()
}

// blankMissing pipes the result of every printing action through orEmpty.
func blankMissing(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			blankMissing(tree, child)
		}
	case *parse.ActionNode:
		if len(n.Pipe.Decl) > 0 {
			return
		}
		ident := parse.NewIdentifier(orEmptyFunc).SetTree(tree).SetPos(n.Pos)
		n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
			NodeType: parse.NodeCommand,
			Pos:      n.Pos,
			Args:     []parse.Node{ident},
		})
	case *parse.IfNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.RangeNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.WithNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	}
}

// titleCase upper-cases the first letter of each word and leaves the rest alone.
func titleCase(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

func joinAny(sep string, items any) string {
	switch v := items.(type) {
	case []string:
		return strings.Join(v, sep)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(items)
	}
}
