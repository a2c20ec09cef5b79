package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/hexastack/agentic/runtime/schema"
)

// Registry is the catalog of actions available to workflows. It is built at
// startup and passed explicitly to the loader and interpreter; workflows only
// refer to actions by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	order   []string
}

// registration holds an action together with its compiled schemas and the
// settings validated once at registration time.
type registration struct {
	action   Action
	input    *schema.Compiled
	output   *schema.Compiled
	settings map[string]any
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registration),
	}
}

type registerOptions struct {
	settings map[string]any
}

type RegisterOption func(*registerOptions)

// WithSettings supplies the static per-installation settings of an action.
func WithSettings(settings map[string]any) RegisterOption {
	return func(o *registerOptions) {
		o.settings = settings
	}
}

// Register adds an action. Duplicate names, invalid schemas and settings
// rejected by the settings schema are errors; nothing is registered then.
func (r *Registry) Register(action Action, opts ...RegisterOption) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}
	name := action.Name()
	if !IsSnakeCase(name) {
		return fmt.Errorf("action name %q must be snake_case (e.g. %q)", name, SnakeCase(name))
	}

	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	input, err := action.InputSchema().Compile()
	if err != nil {
		return fmt.Errorf("action %s: input schema: %w", name, err)
	}
	output, err := action.OutputSchema().Compile()
	if err != nil {
		return fmt.Errorf("action %s: output schema: %w", name, err)
	}
	settingsSchema, err := action.SettingsSchema().Compile()
	if err != nil {
		return fmt.Errorf("action %s: settings schema: %w", name, err)
	}

	if action.SettingsSchema().IsEmpty() && len(o.settings) > 0 {
		return fmt.Errorf("action %s: settings: action takes no settings", name)
	}
	settings := o.settings
	if settings == nil {
		settings = map[string]any{}
	}
	if p, ok := action.(SettingsPreparer); ok {
		settings, err = p.PrepareSettings(settings)
		if err != nil {
			return fmt.Errorf("action %s: settings: %w", name, err)
		}
		if settings == nil {
			settings = map[string]any{}
		}
	}
	if err := settingsSchema.Validate(settings); err != nil {
		return fmt.Errorf("action %s: settings: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, name)
	}
	r.entries[name] = &registration{
		action:   action,
		input:    input,
		output:   output,
		settings: deepcopy.Copy(settings).(map[string]any),
	}
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error. Registration problems
// are startup bugs.
func (r *Registry) MustRegister(action Action, opts ...RegisterOption) {
	if err := r.Register(action, opts...); err != nil {
		panic(fmt.Sprintf("registering action: %v", err))
	}
}

func (r *Registry) Get(name string) (Action, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return reg.action, nil
}

// Has reports whether an action is registered under name.
func (r *Registry) Has(name string) bool {
	_, err := r.lookup(name)
	return err == nil
}

// List returns the registered actions sorted by name.
func (r *Registry) List() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	actions := make([]Action, len(names))
	for i, name := range names {
		actions[i] = r.entries[name].action
	}
	return actions
}

// Settings returns a copy of the validated settings of an action.
func (r *Registry) Settings(name string) (map[string]any, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return deepcopy.Copy(reg.settings).(map[string]any), nil
}

func (r *Registry) lookup(name string) (*registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	return reg, nil
}

// Initialize calls Initialize on every action implementing Initializer, in
// registration order, stopping at the first failure.
func (r *Registry) Initialize(ctx context.Context) error {
	for _, action := range r.ordered() {
		if i, ok := action.(Initializer); ok {
			if err := i.Initialize(ctx); err != nil {
				return fmt.Errorf("action %s initialization failed: %w", action.Name(), err)
			}
		}
	}
	return nil
}

// Shutdown calls Shutdown on every action implementing Shutdowner, in
// reverse registration order, and reports all failures.
func (r *Registry) Shutdown(ctx context.Context) error {
	actions := r.ordered()

	var errs []error
	for i := len(actions) - 1; i >= 0; i-- {
		if s, ok := actions[i].(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("action %s shutdown failed: %w", actions[i].Name(), err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (r *Registry) ordered() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]Action, len(r.order))
	for i, name := range r.order {
		actions[i] = r.entries[name].action
	}
	return actions
}
