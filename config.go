package skillflow

import (
	"context"
	"reflect"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
	"github.com/aretw0/skillflow/pkg/render"
)

// ModelFactory derives the turn model from a raw request.
// The result is stored in Request.Model before any state logic runs.
type ModelFactory interface {
	FromRequest(ctx context.Context, req *domain.Request) (any, error)
}

// ModelFunc adapts a function to ModelFactory.
type ModelFunc func(ctx context.Context, req *domain.Request) (any, error)

// FromRequest calls f.
func (f ModelFunc) FromRequest(ctx context.Context, req *domain.Request) (any, error) {
	return f(ctx, req)
}

// Config holds the setup-time collaborators of a Skill. Every field is required.
type Config struct {
	// Model builds the per-turn model exposed to templates as "model".
	Model ModelFactory

	// Variables are computed for every render. An empty, non-nil set is valid.
	Variables render.Variables

	// Responses is the template source.
	Responses ports.ResponseSource

	// OpenIntent is the intent a launch request is rewritten into.
	OpenIntent string
}

// Validate reports the first missing field as a *domain.ConfigurationError.
func (c Config) Validate() error {
	if fn, ok := c.Model.(ModelFunc); ok && fn == nil {
		return &domain.ConfigurationError{Field: "Model.FromRequest", Reason: "is required"}
	}
	if isNil(c.Model) {
		return &domain.ConfigurationError{Field: "Model", Reason: "is required"}
	}
	if c.Variables == nil {
		return &domain.ConfigurationError{Field: "Variables", Reason: "is required"}
	}
	if isNil(c.Responses) {
		return &domain.ConfigurationError{Field: "Responses", Reason: "is required"}
	}
	if c.OpenIntent == "" {
		return &domain.ConfigurationError{Field: "OpenIntent", Reason: "is required"}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
