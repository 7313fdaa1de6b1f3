// Package keeval is an embeddable key-value store whose durable state is an
// append-only journal of JSON lines.
//
// Example usage:
//
//	cfg := keeval.DefaultConfig()
//	cfg.DataFile = "/var/lib/app/data.json"
//	s, err := keeval.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Set("greeting", keeval.Text("hello")); err != nil {
//	    log.Fatal(err)
//	}
//	v, err := s.Get("greeting")
package keeval

import (
	"fmt"

	"github.com/keeval/keeval/internal/adapters/fs"
	"github.com/keeval/keeval/internal/app"
	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/ports"
	"github.com/keeval/keeval/pkg/log"
)

// Value is an immutable JSON-shaped value: number, text, boolean, record or list.
type Value = domain.Value

// Kind identifies the variant held by a Value.
type Kind = domain.Kind

// Record is one journal entry.
type Record = domain.Record

// Journal is the durable log behind a Store.
type Journal = ports.Journal

// LoadStats summarizes a journal replay.
type LoadStats = app.LoadStats

// Value kinds.
const (
	KindInvalid = domain.KindInvalid
	KindNumber  = domain.KindNumber
	KindText    = domain.KindText
	KindBool    = domain.KindBool
	KindRecord  = domain.KindRecord
	KindList    = domain.KindList
)

// Errors returned by Store operations. Match them with errors.Is.
var (
	ErrInvalidKey           = domain.ErrInvalidKey
	ErrUnsupportedValueType = domain.ErrUnsupportedValueType
	ErrKeyNotFound          = domain.ErrKeyNotFound
	ErrStorageIO            = domain.ErrStorageIO
	ErrCorruptRecord        = domain.ErrCorruptRecord
	ErrInvalidConfig        = domain.ErrInvalidConfig
)

// Value constructors and comparison.
var (
	Number  = domain.Number
	Text    = domain.Text
	Bool    = domain.Bool
	Object  = domain.Object
	List    = domain.List
	FromAny = domain.FromAny
	Equal   = domain.Equal
)

// Config configures a Store.
type Config struct {
	// DataFile is the journal path. It is created on the first write.
	DataFile string

	// Replay loads the journal into memory in Open.
	Replay bool

	// Sync fsyncs the journal after every append.
	Sync bool

	// StrictCommands treats unknown journal commands as corruption.
	StrictCommands bool
}

// DefaultConfig returns a Config for ./data.json with replay and fsync on.
func DefaultConfig() Config {
	return Config{
		DataFile: "data.json",
		Replay:   true,
		Sync:     true,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.DataFile == "" {
		return fmt.Errorf("%w: DataFile is required", ErrInvalidConfig)
	}
	return nil
}

// Option configures optional behavior of a Store.
type Option func(*options)

type options struct {
	logger   log.Logger
	observer func(Journal) Journal
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithJournalObserver wraps the file journal before the engine sees it,
// for example to record metrics.
func WithJournalObserver(wrap func(Journal) Journal) Option {
	return func(o *options) {
		o.observer = wrap
	}
}

// Store is an open key-value store. It is safe for concurrent use.
type Store struct {
	engine *app.Engine
	path   string
}

// Open creates a Store for cfg.DataFile and, when cfg.Replay is set, replays
// the journal into memory.
func Open(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	var journal Journal = fs.NewFileJournal(cfg.DataFile, fs.JournalOptions{
		Sync:           cfg.Sync,
		StrictCommands: cfg.StrictCommands,
		Logger:         o.logger,
	})
	if o.observer != nil {
		journal = o.observer(journal)
	}

	s := &Store{
		engine: app.NewEngine(journal, o.logger),
		path:   cfg.DataFile,
	}
	if cfg.Replay {
		if _, err := s.Load(); err != nil {
			return nil, fmt.Errorf("replay %s: %w", cfg.DataFile, err)
		}
	}
	return s, nil
}

// Path returns the journal file path.
func (s *Store) Path() string { return s.path }

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *Store) Get(key string) (Value, error) {
	return s.engine.Get(key)
}

// Set stores value under key and appends it to the journal.
func (s *Store) Set(key string, value Value) error {
	return s.engine.Set(key, value)
}

// SetAny converts x with FromAny and stores it.
func (s *Store) SetAny(key string, x any) error {
	v, err := FromAny(x)
	if err != nil {
		return err
	}
	return s.engine.Set(key, v)
}

// Delete removes key, or returns ErrKeyNotFound.
func (s *Store) Delete(key string) error {
	return s.engine.Delete(key)
}

// Consolidate rewrites the journal to one record per live key.
func (s *Store) Consolidate() error {
	return s.engine.Consolidate()
}

// Load discards the in-memory state and replays the journal.
func (s *Store) Load() (LoadStats, error) {
	return s.engine.Load()
}
