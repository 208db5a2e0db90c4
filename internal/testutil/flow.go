package testutil

import "github.com/google/uuid"

// FixedCorrelationGenerator returns the same correlation id every time.
//
// Two engines built with it create rooms that cannot be told apart by
// correlation id, which is how tests check that rooms are keyed by path.
//
// Thread-safety: FixedCorrelationGenerator is stateless and safe for
// concurrent use.
type FixedCorrelationGenerator struct {
	id uuid.UUID
}

// NewFixedCorrelationGenerator creates a generator returning id. A nil id
// is replaced by ID(1).
func NewFixedCorrelationGenerator(id uuid.UUID) *FixedCorrelationGenerator {
	if id == uuid.Nil {
		id = ID(1)
	}
	return &FixedCorrelationGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedCorrelationGenerator) Generate() uuid.UUID {
	return g.id
}
