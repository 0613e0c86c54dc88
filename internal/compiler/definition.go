// Package compiler turns a declarative skill.yaml into dsl states.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/directives"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/dsl"
	"github.com/aretw0/skillflow/pkg/ports"
)

// Definition is the decoded form of skill.yaml.
type Definition struct {
	Name       string                     `mapstructure:"name"`
	OpenIntent string                     `mapstructure:"open_intent"`
	Entry      string                     `mapstructure:"entry"`
	Responses  map[string]any             `mapstructure:"responses"`
	States     map[string]StateDefinition `mapstructure:"states"`

	source ports.ResponseSource
}

// StateDefinition declares the intents of one state.
type StateDefinition struct {
	Intents  map[string]IntentDefinition `mapstructure:"intents"`
	Fallback *IntentDefinition           `mapstructure:"fallback"`
}

// IntentDefinition declares what an intent says and where it goes.
// At most one of To, Stay and End may be set; none means stay.
type IntentDefinition struct {
	Say     []string         `mapstructure:"say"`
	Cards   []string         `mapstructure:"cards"`
	Suggest string           `mapstructure:"suggest"`
	Audio   *AudioDefinition `mapstructure:"audio"`
	Set     map[string]any   `mapstructure:"set"`
	To      string           `mapstructure:"to"`
	Stay    bool             `mapstructure:"stay"`
	End     bool             `mapstructure:"end"`
}

// AudioDefinition plays a media URL and ends the conversation.
type AudioDefinition struct {
	URL     string `mapstructure:"url"`
	Title   string `mapstructure:"title"`
	Profile string `mapstructure:"profile"`
}

// UseResponses makes Validate check template keys against src instead of
// the inline responses.
func (d *Definition) UseResponses(src ports.ResponseSource) {
	d.source = src
}

// EntryState returns the declared entry state, or domain.EntryState.
func (d *Definition) EntryState() string {
	if d.Entry != "" {
		return d.Entry
	}
	return domain.EntryState
}

// StateNames returns the declared states, sorted.
func (d *Definition) StateNames() []string {
	names := make([]string, 0, len(d.States))
	for name := range d.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the definition for structural errors. Every problem found
// is reported, joined into one error.
func (d *Definition) Validate() error {
	var errs []error
	if d.OpenIntent == "" {
		errs = append(errs, &domain.ConfigurationError{Field: "open_intent", Reason: "required"})
	}
	if len(d.States) == 0 {
		errs = append(errs, &domain.ConfigurationError{Field: "states", Reason: "at least one state is required"})
	} else if _, ok := d.States[d.EntryState()]; !ok {
		errs = append(errs, fmt.Errorf("entry state: %w", &domain.UnknownStateError{Name: d.EntryState()}))
	}

	for _, name := range d.StateNames() {
		state := d.States[name]
		intents := make([]string, 0, len(state.Intents))
		for intent := range state.Intents {
			intents = append(intents, intent)
		}
		sort.Strings(intents)

		for _, intent := range intents {
			def := state.Intents[intent]
			if err := d.validateIntent(&def); err != nil {
				errs = append(errs, fmt.Errorf("state %q intent %q: %w", name, intent, err))
			}
		}
		if state.Fallback != nil {
			if err := d.validateIntent(state.Fallback); err != nil {
				errs = append(errs, fmt.Errorf("state %q fallback: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Definition) validateIntent(def *IntentDefinition) error {
	var errs []error

	set := 0
	for _, b := range []bool{def.To != "", def.Stay, def.End} {
		if b {
			set++
		}
	}
	if set > 1 {
		errs = append(errs, &domain.ConfigurationError{Field: "to/stay/end", Reason: "only one transition may be set"})
	}
	if def.To != "" {
		if _, ok := d.States[def.To]; !ok {
			errs = append(errs, &domain.UnknownStateError{Name: def.To})
		}
	}
	if def.Audio != nil && def.Audio.URL == "" {
		errs = append(errs, &domain.ConfigurationError{Field: "audio.url", Reason: "required"})
	}

	if responses := d.responseSource(); responses != nil {
		keys := append(append([]string{}, def.Say...), def.Cards...)
		if def.Suggest != "" {
			keys = append(keys, def.Suggest)
		}
		for _, key := range keys {
			if _, err := responses.Lookup(context.Background(), key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Build compiles the definition into a dsl builder. It validates first.
func (d *Definition) Build() (*dsl.Builder, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	b := dsl.New()
	for _, name := range d.StateNames() {
		state := d.States[name]
		sb := b.State(name)
		for intent, def := range state.Intents {
			apply(sb.On(intent), def)
		}
		if state.Fallback != nil {
			apply(sb.Fallback(), *state.Fallback)
		}
	}
	return b, nil
}

// responseSource returns the source template keys are checked against, or
// nil when there is nothing to check.
func (d *Definition) responseSource() ports.ResponseSource {
	if d.source != nil {
		return d.source
	}
	if len(d.Responses) > 0 {
		return memory.NewResponses(d.Responses)
	}
	return nil
}

// NewResponses returns the inline responses as a response source.
func (d *Definition) NewResponses() *memory.Responses {
	tree := d.Responses
	if tree == nil {
		tree = map[string]any{}
	}
	return memory.NewResponses(tree)
}

func apply(ib *dsl.IntentBuilder, def IntentDefinition) {
	for k, v := range def.Set {
		ib.Set(k, v)
	}
	ib.Say(def.Say...)
	for _, card := range def.Cards {
		ib.Card(card)
	}
	if def.Suggest != "" {
		ib.Suggest(def.Suggest)
	}
	if def.Audio != nil {
		ib.Directive(directives.AudioCard(def.Audio.URL, def.Audio.Title, def.Audio.Profile))
	}

	switch {
	case def.To != "":
		ib.Go(def.To)
	case def.End:
		ib.End()
	default:
		ib.Stay()
	}
}
