package workflow

import "fmt"

// TableBuilder builds an immutable transition table
type TableBuilder interface {
	// Configure returns the edge configuration for the given source status
	Configure(from Status) EdgeConfiguration

	// Build creates a table from the configured edges
	Build() *Table
}

// EdgeConfiguration configures outgoing edges for a specific status
type EdgeConfiguration interface {
	// Permit allows a transition to the target status for holders of permission
	Permit(to Status, permission, label string, opts ...EdgeOption) EdgeConfiguration
}

// edgeConfig implements EdgeConfiguration
type edgeConfig struct {
	from  Status
	edges []Transition
}

// tableBuilder implements TableBuilder
type tableBuilder struct {
	configurations map[Status]*edgeConfig
	order          []Status
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		configurations: make(map[Status]*edgeConfig),
	}
}

// Configure returns the edge configuration for the given source status
func (b *tableBuilder) Configure(from Status) EdgeConfiguration {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", from))
	}

	config, exists := b.configurations[from]
	if !exists {
		config = &edgeConfig{from: from}
		b.configurations[from] = config
		b.order = append(b.order, from)
	}

	return config
}

// Build creates a table from the configured edges
func (b *tableBuilder) Build() *Table {
	// Copy so later Configure calls cannot change a built table
	edges := make(map[Status][]Transition, len(b.configurations))
	for from, config := range b.configurations {
		edges[from] = append([]Transition{}, config.edges...)
	}

	return &Table{
		edges: edges,
		order: append([]Status{}, b.order...),
	}
}

// Permit allows a transition to the target status for holders of permission
func (c *edgeConfig) Permit(to Status, permission, label string, opts ...EdgeOption) EdgeConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	for _, existing := range c.edges {
		if existing.To == to {
			panic(fmt.Sprintf("duplicate transition: %s -> %s", c.from, to))
		}
	}

	t := Transition{
		From:               c.from,
		To:                 to,
		RequiredPermission: permission,
		Label:              label,
	}
	for _, opt := range opts {
		opt(&t)
	}
	c.edges = append(c.edges, t)

	return c
}
