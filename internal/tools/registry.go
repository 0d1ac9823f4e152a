package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/invopop/jsonschema"
)

// ExecuteFunc runs one tool invocation. The string result is what gets
// recorded in the transcript's tool_result part; execution errors are
// returned to the model as text rather than aborting the turn.
type ExecuteFunc func(ctx context.Context, input json.RawMessage) (string, error)

// Capability is a named external action the model may invoke: an input
// schema describing its arguments plus the function that executes them.
// The core never decides which capabilities exist — it records whichever
// invocations the upstream adapter chose to make.
type Capability struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Execute     ExecuteFunc
}

// Registry holds the capability set resolved for one request. Iteration
// order is registration order so tool advertising stays deterministic.
type Registry struct {
	capabilities []Capability
	byName       map[string]int
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a capability. Re-registering a name overwrites the previous
// entry, keeping its position.
func (r *Registry) Register(cap Capability) {
	if idx, exists := r.byName[cap.Name]; exists {
		log.Printf("WARN [ToolRegistry] Capability '%s' is already registered. Overwriting.", cap.Name)
		r.capabilities[idx] = cap
		return
	}
	r.byName[cap.Name] = len(r.capabilities)
	r.capabilities = append(r.capabilities, cap)
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (Capability, error) {
	idx, exists := r.byName[name]
	if !exists {
		return Capability{}, fmt.Errorf("no capability registered for tool: %s", name)
	}
	return r.capabilities[idx], nil
}

// List returns the registered capabilities in registration order.
func (r *Registry) List() []Capability {
	out := make([]Capability, len(r.capabilities))
	copy(out, r.capabilities)
	return out
}

// Names returns the registered capability names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.capabilities))
	for i, c := range r.capabilities {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.capabilities)
}

// Clone returns an independent copy, used to derive a per-request set from
// the builtin base without mutating it.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for _, c := range r.capabilities {
		clone.Register(c)
	}
	return clone
}

// Execute looks up and runs a capability. Unknown names return an error
// string result so the model sees the failure as tool output.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	cap, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return cap.Execute(ctx, input)
}

// Add registers a type-safe tool handler. The input schema is generated
// from T's json and jsonschema struct tags and the handler receives already
// unmarshaled arguments.
func Add[T any](r *Registry, name, description string, handler func(context.Context, T) (string, error)) {
	schema := generateSchema[T]()

	execute := func(ctx context.Context, input json.RawMessage) (string, error) {
		var params T
		if len(input) > 0 {
			if err := json.Unmarshal(input, &params); err != nil {
				return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
			}
		}
		return handler(ctx, params)
	}

	r.Register(Capability{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Execute:     execute,
	})
}

// generateSchema uses reflection to create a JSON schema from a Go struct
// type, parsing jsonschema struct tags.
func generateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		DoNotReference: true, // Inline all definitions instead of using $ref
		ExpandedStruct: true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	bytes, err := json.Marshal(schema)
	if err != nil {
		// This should never happen with valid types
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}

	return json.RawMessage(bytes)
}
