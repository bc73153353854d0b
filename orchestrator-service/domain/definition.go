package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/draftea/payment-hub/shared/faults"
	"github.com/pkg/errors"
)

// BackoffPolicy controls the delay between step retry dispatches
type BackoffPolicy struct {
	InitialInterval time.Duration `json:"initial_interval"`
	Multiplier      float64       `json:"multiplier"`
	MaxInterval     time.Duration `json:"max_interval"`
}

// DefaultBackoffPolicy is applied when a step definition leaves the policy empty
var DefaultBackoffPolicy = BackoffPolicy{
	InitialInterval: 2 * time.Second,
	Multiplier:      2.0,
	MaxInterval:     time.Minute,
}

// Delay returns the dispatch delay before the given attempt (1-based).
// The first attempt is dispatched immediately.
func (b BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := b.InitialInterval
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay >= b.MaxInterval {
			return b.MaxInterval
		}
	}

	if delay > b.MaxInterval {
		return b.MaxInterval
	}
	return delay
}

// StepDefinition describes one step of a saga: the executor action to run,
// its optional compensation, and its retry/timeout budget.
type StepDefinition struct {
	Name                    string        `json:"name"`
	Command                 string        `json:"command"`
	Compensation            string        `json:"compensation,omitempty"`
	Timeout                 time.Duration `json:"timeout"`
	MaxAttempts             int           `json:"max_attempts"`
	MaxCompensationAttempts int           `json:"max_compensation_attempts"`
	Backoff                 BackoffPolicy `json:"backoff"`
}

// SagaDefinition is the immutable, per (tenant, payment type) ordered step
// list. The orchestrator looks definitions up and never mutates them.
type SagaDefinition struct {
	SagaType    string           `json:"saga_type"`
	TenantID    string           `json:"tenant_id"`
	PaymentType string           `json:"payment_type"`
	Steps       []StepDefinition `json:"steps"`
}

// Validate checks structural invariants of a definition
func (d *SagaDefinition) Validate() error {
	if d.SagaType == "" {
		return errors.New("saga type is required")
	}
	if d.TenantID == "" {
		return errors.New("tenant ID is required")
	}
	if d.PaymentType == "" {
		return errors.New("payment type is required")
	}
	if len(d.Steps) == 0 {
		return errors.New("a saga definition needs at least one step")
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		if step.Name == "" {
			return errors.New("step name is required")
		}
		if step.Command == "" {
			return errors.Errorf("step %s has no command", step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return errors.Errorf("duplicate step name %s", step.Name)
		}
		seen[step.Name] = struct{}{}
		if step.MaxAttempts < 1 {
			return errors.Errorf("step %s needs a positive attempt budget", step.Name)
		}
		if step.Compensation != "" && step.MaxCompensationAttempts < 1 {
			return errors.Errorf("step %s needs a positive compensation budget", step.Name)
		}
	}

	return nil
}

// DefinitionRegistry resolves the saga definition for a (tenant, payment
// type) pair. Resolution failure is fatal for the attempt: the orchestrator
// never substitutes a default definition.
type DefinitionRegistry interface {
	Resolve(tenantID, paymentType string) (*SagaDefinition, error)
}

// StaticDefinitionRegistry is an in-memory DefinitionRegistry populated at
// service startup from configuration.
type StaticDefinitionRegistry struct {
	mux  sync.RWMutex
	defs map[string]*SagaDefinition
}

// NewStaticDefinitionRegistry creates an empty registry
func NewStaticDefinitionRegistry() *StaticDefinitionRegistry {
	return &StaticDefinitionRegistry{
		defs: make(map[string]*SagaDefinition),
	}
}

// Register adds a definition, applying default budgets where absent
func (r *StaticDefinitionRegistry) Register(def *SagaDefinition) error {
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.MaxAttempts == 0 {
			step.MaxAttempts = 3
		}
		if step.Compensation != "" && step.MaxCompensationAttempts == 0 {
			step.MaxCompensationAttempts = 2
		}
		if step.Timeout == 0 {
			step.Timeout = 30 * time.Second
		}
		if step.Backoff == (BackoffPolicy{}) {
			step.Backoff = DefaultBackoffPolicy
		}
	}

	if err := def.Validate(); err != nil {
		return errors.Wrap(err, "invalid saga definition")
	}

	r.mux.Lock()
	defer r.mux.Unlock()
	r.defs[definitionKey(def.TenantID, def.PaymentType)] = def
	return nil
}

// Resolve implements DefinitionRegistry
func (r *StaticDefinitionRegistry) Resolve(tenantID, paymentType string) (*SagaDefinition, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()

	def, ok := r.defs[definitionKey(tenantID, paymentType)]
	if !ok {
		return nil, errors.Wrapf(faults.ErrConfigurationNotFound,
			"no saga definition for tenant %s and payment type %s", tenantID, paymentType)
	}
	return def, nil
}

func definitionKey(tenantID, paymentType string) string {
	return fmt.Sprintf("%s/%s", tenantID, paymentType)
}
