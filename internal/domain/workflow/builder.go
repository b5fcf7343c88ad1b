package workflow

import "fmt"

// TableBuilder assembles a transition table
type TableBuilder interface {
	// Configure returns the configuration for transitions leaving state
	Configure(state State) StateConfiguration

	// Build freezes the configured transitions into a Table
	Build() *Table
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows moving to each of the target states
	Permit(targets ...State) StateConfiguration
}

type stateConfig struct {
	fromState State
	targets   []State
}

type tableBuilder struct {
	configurations map[State]*stateConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{fromState: state}
		b.configurations[state] = config
	}

	return config
}

// Build copies the configuration so later Configure calls do not leak into the table
func (b *tableBuilder) Build() *Table {
	successors := make(map[State][]State, len(b.configurations))
	for state, config := range b.configurations {
		successors[state] = append([]State(nil), config.targets...)
	}
	return &Table{successors: successors}
}

// Permit allows transitions to the given target states
func (c *stateConfig) Permit(targets ...State) StateConfiguration {
	for _, to := range targets {
		if !to.IsValid() {
			panic(fmt.Sprintf("invalid target state: %s", to))
		}
		if to == c.fromState {
			panic(fmt.Sprintf("self transition not allowed: %s", to))
		}
		c.targets = append(c.targets, to)
	}
	return c
}
