package flows

import (
	"fmt"
	"sort"
)

// Flow names
const (
	FlowWelcome      = "welcome"
	FlowMainMenu     = "main_menu"
	FlowQuote        = "quote"
	FlowClaim        = "claim"
	FlowRenewal      = "renewal"
	FlowInsurers     = "insurers"
	FlowHandoff      = "handoff"
	FlowFinalization = "finalization"
)

// Handler consumes one turn. It either records data and moves the turn to
// another step, or answers and leaves the turn where it is.
type Handler func(t *Turn) error

// Step is one state of a flow. Prompt renders the question asked on entry;
// Handle processes the answer. Prev names the step "voltar" returns to; an
// empty Prev goes back to the main menu.
type Step struct {
	Name   string
	Prev   string
	Prompt Handler
	Handle Handler
}

// Flow is a named group of steps
type Flow struct {
	Name  string
	steps map[string]*Step
}

func NewFlow(name string, steps ...*Step) *Flow {
	f := &Flow{Name: name, steps: make(map[string]*Step, len(steps))}
	for _, s := range steps {
		f.steps[s.Name] = s
	}
	return f
}

// Registry maps (flow, step) to its handlers. Handlers never reference each
// other directly; they move the turn by name and the registry resolves it.
type Registry struct {
	flows map[string]*Flow
}

func NewRegistry(flows ...*Flow) *Registry {
	r := &Registry{flows: make(map[string]*Flow, len(flows))}
	for _, f := range flows {
		r.flows[f.Name] = f
	}
	return r
}

// Lookup resolves a step
func (r *Registry) Lookup(flow, step string) (*Step, bool) {
	f, ok := r.flows[flow]
	if !ok {
		return nil, false
	}
	s, ok := f.steps[step]
	return s, ok
}

// Flows lists the registered flow names in sorted order
func (r *Registry) Flows() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every step has a handler and every Prev resolves
func (r *Registry) Validate() error {
	for _, f := range r.flows {
		for name, s := range f.steps {
			if s.Handle == nil {
				return fmt.Errorf("step %s/%s has no handler", f.Name, name)
			}
			if s.Prev != "" {
				if _, ok := f.steps[s.Prev]; !ok {
					return fmt.Errorf("step %s/%s goes back to unknown step %q", f.Name, name, s.Prev)
				}
			}
		}
	}
	if _, ok := r.Lookup(FlowWelcome, stepStart); !ok {
		return fmt.Errorf("default step %s/%s is not registered", FlowWelcome, stepStart)
	}
	if _, ok := r.Lookup(FlowMainMenu, stepChoose); !ok {
		return fmt.Errorf("main menu %s/%s is not registered", FlowMainMenu, stepChoose)
	}
	return nil
}

// DefaultRegistry wires every conversation flow
func DefaultRegistry() *Registry {
	return NewRegistry(
		welcomeFlow(),
		mainMenuFlow(),
		quoteFlow(),
		claimFlow(),
		renewalFlow(),
		insurersFlow(),
		handoffFlow(),
		finalizationFlow(),
	)
}
