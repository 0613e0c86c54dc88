package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/internal/compiler"
	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/pkg/adapters/loam"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
	"github.com/aretw0/skillflow/pkg/render"
)

// ResponsesDir is the optional Loam repository of a project, next to skill.yaml.
const ResponsesDir = "responses"

// ErrNotWatchable is returned by Project.Watch for projects without a responses directory.
var ErrNotWatchable = errors.New("project has no watchable responses")

// Project is a skill directory compiled into a ready-to-serve Skill.
type Project struct {
	Dir        string
	Definition *compiler.Definition
	Skill      *skillflow.Skill

	watchable ports.Watchable
}

// ProjectOptions configure LoadProject.
type ProjectOptions struct {
	Logger *slog.Logger
	Hooks  domain.LifecycleHooks
}

// LoadProject parses dir/skill.yaml, picks the response source and registers
// every state. Documents under dir/responses take precedence over inline
// responses.
func LoadProject(dir string, opts ProjectOptions) (*Project, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	def, err := compiler.Load(dir)
	if err != nil {
		return nil, err
	}

	p := &Project{Dir: dir, Definition: def}

	var responses ports.ResponseSource = def.NewResponses()
	if info, err := os.Stat(filepath.Join(dir, ResponsesDir)); err == nil && info.IsDir() {
		repo, err := loam.Open(filepath.Join(dir, ResponsesDir))
		if err != nil {
			return nil, err
		}
		responses = Layered{repo, responses}
		p.watchable = repo
		def.UseResponses(responses)
		opts.Logger.Debug("using loam responses", "dir", filepath.Join(dir, ResponsesDir))
	}

	builder, err := def.Build()
	if err != nil {
		return nil, err
	}

	skill, err := skillflow.New(skillflow.Config{
		Model:      skillflow.ModelFunc(turnModel),
		Variables:  render.Variables{"skill": constant(def.Name)},
		Responses:  responses,
		OpenIntent: def.OpenIntent,
	},
		skillflow.WithEntryState(def.EntryState()),
		skillflow.WithLogger(opts.Logger),
		skillflow.WithLifecycleHooks(opts.Hooks),
	)
	if err != nil {
		return nil, err
	}
	if err := builder.Apply(skill); err != nil {
		return nil, fmt.Errorf("failed to register states: %w", err)
	}

	p.Skill = skill
	return p, nil
}

// Watch streams the keys of changed response documents.
func (p *Project) Watch(ctx context.Context) (<-chan string, error) {
	if p.watchable == nil {
		return nil, ErrNotWatchable
	}
	return p.watchable.Watch(ctx)
}

// turnModel exposes the raw turn to templates as {{.model.intent}} and friends.
func turnModel(ctx context.Context, req *domain.Request) (any, error) {
	return map[string]any{
		"intent": req.IntentName,
		"slots":  req.Slots,
		"locale": req.Locale,
	}, nil
}

func constant(v any) render.VariableFunc {
	return func(context.Context, *domain.Request) (any, error) {
		return v, nil
	}
}

// Layered resolves a key against each source in order, skipping sources
// that do not know it.
type Layered []ports.ResponseSource

// Lookup implements ports.ResponseSource.
func (l Layered) Lookup(ctx context.Context, key string) (any, error) {
	for _, src := range l {
		v, err := src.Lookup(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, key)
}
