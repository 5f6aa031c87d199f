package eventsim

import (
	"math/rand/v2"
	"time"
)

// Generator produces synthetic events.
// Event types and values are drawn uniformly; CreatedAt is taken from the clock.
//
// A Generator is not safe for concurrent use, the Simulator drives it from a single goroutine.
type Generator struct {
	rng   *rand.Rand
	clock func() time.Time
}

// GeneratorOption configures a Generator using the functional options pattern.
type GeneratorOption func(*Generator) error

// WithRand sets the source of randomness, mainly to get reproducible events in tests.
func WithRand(rng *rand.Rand) GeneratorOption {
	return func(g *Generator) error {
		if rng == nil {
			return ErrNilRandSource
		}

		g.rng = rng

		return nil
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(clock func() time.Time) GeneratorOption {
	return func(g *Generator) error {
		if clock == nil {
			return ErrNilClock
		}

		g.clock = clock

		return nil
	}
}

// NewGenerator creates a Generator seeded from the runtime's random source and using the wall clock.
func NewGenerator(options ...GeneratorOption) (*Generator, error) {
	g := &Generator{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // synthetic data, no crypto needed
		clock: time.Now,
	}

	for _, option := range options {
		if err := option(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Next generates one event.
func (g *Generator) Next() Event {
	eventType := eventTypes[g.rng.IntN(len(eventTypes))]
	value := RoundValue(MinValue + g.rng.Float64()*(MaxValue-MinValue))

	return Event{
		EventType: eventType,
		Value:     value,
		CreatedAt: g.clock().UnixMilli(),
	}
}
