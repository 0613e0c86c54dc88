package domain

import (
	"reflect"
)

// SessionDiff represents the changes a turn made to a session.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	// State is set when the persisted state name changed.
	State *string `json:"state,omitempty"`

	// Attributes contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Terminated is set when the turn ended the conversation.
	Terminated *bool `json:"terminated,omitempty"`
}

// Diff calculates the difference between the session a turn started from and
// the reply it produced. If before is nil, every reply attribute is reported.
// It returns nil when nothing changed.
func Diff(before *Session, reply *Reply) *SessionDiff {
	if reply == nil {
		return nil
	}

	diff := &SessionDiff{}
	var old map[string]any
	if before != nil {
		diff.SessionID = before.ID
		old = before.Attributes
	}

	diff.Attributes = diffAttributes(old, reply.SessionAttributes())

	if v, ok := diff.Attributes[StateAttribute]; ok {
		if name, ok := v.(string); ok {
			diff.State = &name
		}
	}

	if reply.HasTerminated() {
		t := true
		diff.Terminated = &t
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAttributes(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	// Check for Added or Modified
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	// Check for Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.State == nil &&
		d.Terminated == nil &&
		len(d.Attributes) == 0
}
