package ports

import "github.com/keeval/keeval/internal/domain"

// Journal is the durable, append-only command log behind the engine.
// Implementations must serialize appends and Consolidate through a single
// ordering point: record N is fully written before record N+1 begins, and
// Consolidate never observes a partially written record.
type Journal interface {
	// AppendSet durably appends a set record for key.
	AppendSet(key string, value domain.Value) error

	// AppendDelete durably appends a delete record for key.
	AppendDelete(key string) error

	// ReadAll returns every record in file order.
	// Returns an empty slice and nil error if the journal does not exist yet.
	ReadAll() ([]domain.Record, error)

	// Consolidate rewrites the journal to one set record per live key.
	// It must not change the key/value state that replay reconstructs.
	Consolidate() error
}
