package domain

import "errors"

// Domain errors represent error conditions in the keeval domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidKey is returned when a key is not valid UTF-8 text.
	ErrInvalidKey = errors.New("keeval: invalid key")

	// ErrUnsupportedValueType is returned when a value is not a number, text,
	// boolean, record or list (or contains something that is not).
	ErrUnsupportedValueType = errors.New("keeval: unsupported value type")

	// ErrKeyNotFound is returned by get and delete on an absent key.
	ErrKeyNotFound = errors.New("keeval: key not found")

	// ErrStorageIO is returned when the journal file cannot be read or written.
	ErrStorageIO = errors.New("keeval: storage i/o")

	// ErrCorruptRecord is returned when a journal line cannot be parsed as a record.
	ErrCorruptRecord = errors.New("keeval: corrupt journal record")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("keeval: invalid configuration")
)
