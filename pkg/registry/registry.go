// Package registry maps action identifiers to their handlers and execution policy.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukex/planflow/pkg/protocol"
)

var (
	// ErrDuplicateAction indicates an action id was registered twice.
	ErrDuplicateAction = errors.New("action already registered")

	// ErrUnknownAction indicates an action id that was never registered.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNilHandler indicates a registration without a handler.
	ErrNilHandler = errors.New("action handler is nil")
)

// FailureClass decides what a failed step does to its plan.
type FailureClass string

const (
	// Recoverable failures are recorded and execution proceeds.
	Recoverable FailureClass = "recoverable"
	// Critical failures abort the plan.
	Critical FailureClass = "critical"
)

// Action is a resolved registry entry.
type Action struct {
	ID                string
	Description       string
	Handler           protocol.ActionHandler
	EstimatedDuration time.Duration
	Class             FailureClass
	Timeout           time.Duration // zero means no timeout
}

// IsCritical returns true when a failure of this action aborts the plan.
func (a Action) IsCritical() bool {
	return a.Class == Critical
}

// Descriptor is the handler-free view of an action, used for listings.
type Descriptor struct {
	ID                string        `json:"id"`
	Description       string        `json:"description,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Critical          bool          `json:"critical"`
	Timeout           time.Duration `json:"timeout,omitempty"`
}

// Option customizes an action at registration.
type Option func(*Action)

// WithEstimatedDuration sets the advisory duration used for UI pacing.
func WithEstimatedDuration(d time.Duration) Option {
	return func(a *Action) {
		a.EstimatedDuration = d
	}
}

// WithCritical marks the action as critical.
func WithCritical() Option {
	return func(a *Action) {
		a.Class = Critical
	}
}

// WithClass sets the failure class explicitly.
func WithClass(class FailureClass) Option {
	return func(a *Action) {
		a.Class = class
	}
}

// WithTimeout bounds every invocation of the action.
func WithTimeout(d time.Duration) Option {
	return func(a *Action) {
		a.Timeout = d
	}
}

// WithDescription attaches a human-readable description.
func WithDescription(description string) Option {
	return func(a *Action) {
		a.Description = description
	}
}

// Registry holds the registered actions. Writes are expected during
// startup only; reads are safe from any goroutine.
type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	actions map[string]Action
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log,
		actions: make(map[string]Action),
	}
}

// Register adds an action. The default failure class is recoverable.
func (r *Registry) Register(actionID string, handler protocol.ActionHandler, opts ...Option) error {
	if handler == nil {
		return fmt.Errorf("register '%s': %w", actionID, ErrNilHandler)
	}

	action := Action{
		ID:      actionID,
		Handler: handler,
		Class:   Recoverable,
	}

	for _, opt := range opts {
		opt(&action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[actionID]; exists {
		return fmt.Errorf("register '%s': %w", actionID, ErrDuplicateAction)
	}

	r.actions[actionID] = action

	r.logger.Debug("Registered action",
		"action_id", actionID,
		"class", action.Class,
		"estimated_duration", action.EstimatedDuration,
		"timeout", action.Timeout)

	return nil
}

// MustRegister is Register for startup code, where a duplicate is fatal.
func (r *Registry) MustRegister(actionID string, handler protocol.ActionHandler, opts ...Option) {
	err := r.Register(actionID, handler, opts...)
	if err != nil {
		panic(err)
	}
}

// Resolve returns the action registered under actionID.
func (r *Registry) Resolve(actionID string) (Action, error) {
	r.mu.RLock()
	action, ok := r.actions[actionID]
	r.mu.RUnlock()

	if !ok {
		return Action{}, fmt.Errorf("action '%s': %w", actionID, ErrUnknownAction)
	}

	return action, nil
}

// Policy returns the failure class of an action. Unknown actions are
// treated as recoverable.
func (r *Registry) Policy(actionID string) FailureClass {
	action, err := r.Resolve(actionID)
	if err != nil {
		return Recoverable
	}

	return action.Class
}

// Has reports whether actionID is registered.
func (r *Registry) Has(actionID string) bool {
	_, err := r.Resolve(actionID)

	return err == nil
}

// Actions lists all registered actions sorted by id.
func (r *Registry) Actions() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.actions))
	for _, action := range r.actions {
		descriptors = append(descriptors, Descriptor{
			ID:                action.ID,
			Description:       action.Description,
			EstimatedDuration: action.EstimatedDuration,
			Critical:          action.IsCritical(),
			Timeout:           action.Timeout,
		})
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ID < descriptors[j].ID
	})

	return descriptors
}

// IDs returns the registered action ids sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.actions))
	for id := range r.actions {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// HealthCheck reports the registry state for health endpoints.
func (r *Registry) HealthCheck() (string, bool) {
	count := len(r.IDs())
	if count == 0 {
		return "no actions registered", false
	}

	return fmt.Sprintf("%d actions registered", count), true
}

// IsUnknownAction checks if an error indicates an unregistered action.
func IsUnknownAction(err error) bool {
	return errors.Is(err, ErrUnknownAction)
}

// IsDuplicateAction checks if an error indicates a duplicate registration.
func IsDuplicateAction(err error) bool {
	return errors.Is(err, ErrDuplicateAction)
}
