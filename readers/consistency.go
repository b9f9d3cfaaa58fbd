package readers

import "context"

// ConsistencyLevel selects which database a fetch may read from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary database. This is the default.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows all statements of a fetch to run against a configured
	// read replica. Without a replica the primary is used.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key used to store the consistency level.
const ConsistencyLevelKey contextKey = "readers.consistency_level"

// WithStrongConsistency returns a context that routes fetches to the primary database.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows fetches to be served by a read replica.
//
// Example usage:
//
//	ctx = readers.WithEventualConsistency(ctx)
//	instances, err := engine.Fetch(ctx, plan)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, defaulting to StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
