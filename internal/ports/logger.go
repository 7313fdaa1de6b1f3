package ports

import "github.com/keeval/keeval/pkg/log"

// Logger is the structured logging port. It is defined in pkg/log so that
// embedders can supply their own implementation.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for adapters and the application layer.
var (
	String   = log.String
	Int      = log.Int
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
)
