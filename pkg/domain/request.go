package domain

// RequestType identifies the kind of inbound turn.
type RequestType string

const (
	RequestLaunch       RequestType = "launch"
	RequestIntent       RequestType = "intent"
	RequestSessionEnded RequestType = "session_ended"
)

const (
	// EntryState is the state every new session starts from.
	EntryState = "entry"

	// StateAttribute is the session attribute holding the persisted state name.
	StateAttribute = "state"
)

// Session is the conversation-scoped data carried by every request.
type Session struct {
	ID string `json:"id"`

	// IsNew is set by the channel for the first turn of a conversation.
	// It is never persisted.
	IsNew bool `json:"-"`

	Attributes map[string]any `json:"attributes"`
}

// NewSession creates a fresh session with empty attributes.
func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		IsNew:      true,
		Attributes: make(map[string]any),
	}
}

// Request is the normalized turn input.
type Request struct {
	Type       RequestType    `json:"type"`
	IntentName string         `json:"intent"`
	Slots      map[string]any `json:"slots,omitempty"`
	Session    Session        `json:"session"`
	Locale     string         `json:"locale,omitempty"`

	// Model is derived from the raw request by the skill's ModelFactory
	// before any handler runs.
	Model any `json:"-"`
}

// Slot returns the value of a slot, if present.
func (r *Request) Slot(name string) (any, bool) {
	if r.Slots == nil {
		return nil, false
	}
	v, ok := r.Slots[name]
	return v, ok
}

// Attribute returns a session attribute as received with the request.
func (r *Request) Attribute(name string) (any, bool) {
	if r.Session.Attributes == nil {
		return nil, false
	}
	v, ok := r.Session.Attributes[name]
	return v, ok
}

// StateName returns the persisted state name, or "" when absent.
func (r *Request) StateName() string {
	v, ok := r.Attribute(StateAttribute)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}
