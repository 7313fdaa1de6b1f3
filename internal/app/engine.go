package app

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/ports"
)

// LoadStats summarizes a journal replay.
type LoadStats struct {
	Records int
	Sets    int
	Deletes int
	// Skipped counts unknown commands, unsupported values and records the
	// store rejected.
	Skipped int
}

// Engine keeps a ValueStore and a Journal consistent. Every mutation visible
// in memory is appended to the journal in the same order.
type Engine struct {
	journal ports.Journal
	logger  ports.Logger

	store atomic.Pointer[ValueStore]

	// writeMu orders a mutation and its journal append as one step.
	// Reads never take it.
	writeMu sync.Mutex
}

// NewEngine creates an engine with an empty store. Call Load to restore
// durable state.
func NewEngine(journal ports.Journal, logger ports.Logger) *Engine {
	e := &Engine{journal: journal, logger: logger}
	e.store.Store(NewValueStore())
	return e
}

// Load replays the journal into a fresh store and installs it.
// Records rejected by the store are skipped: a durably written record is
// trusted, not re-validated.
func (e *Engine) Load() (LoadStats, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	start := time.Now()

	records, err := e.journal.ReadAll()
	if err != nil {
		return LoadStats{}, err
	}

	fresh := NewValueStore()
	stats := LoadStats{Records: len(records)}
	for i, rec := range records {
		var applyErr error
		switch rec.Command {
		case domain.CommandSet:
			applyErr = fresh.Set(rec.Key, rec.Value)
			if applyErr == nil {
				stats.Sets++
			}
		case domain.CommandDelete:
			applyErr = fresh.Delete(rec.Key)
			if applyErr == nil {
				stats.Deletes++
			}
		default:
			stats.Skipped++
			e.logger.Warn("skipping unknown journal command",
				ports.Int("record", i),
				ports.String("command", rec.Command),
				ports.String("key", rec.Key))
			continue
		}
		if applyErr != nil {
			stats.Skipped++
			if rec.Unsupported() {
				e.logger.Warn("skipping journal value of unsupported type",
					ports.Int("record", i),
					ports.String("key", rec.Key))
				continue
			}
			e.logger.Debug("replay ignored record",
				ports.Int("record", i),
				ports.String("command", rec.Command),
				ports.String("key", rec.Key),
				ports.Err(applyErr))
		}
	}

	e.store.Store(fresh)
	e.logger.Info("journal replayed",
		ports.Int("records", stats.Records),
		ports.Int("sets", stats.Sets),
		ports.Int("deletes", stats.Deletes),
		ports.Int("skipped", stats.Skipped),
		ports.Duration("took", time.Since(start)))
	return stats, nil
}

// Get returns the value for key. It does not touch the journal.
func (e *Engine) Get(key string) (domain.Value, error) {
	return e.store.Load().Get(key)
}

// Set stores value for key and appends a set record. If the store rejects
// the call the journal is untouched. If the append fails the in-memory
// value stays and the storage error is returned.
func (e *Engine) Set(key string, value domain.Value) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.store.Load().Set(key, value); err != nil {
		return err
	}
	if err := e.journal.AppendSet(key, value); err != nil {
		e.logJournalFailure("set", key, err)
		return err
	}
	return nil
}

// Delete removes key and appends a delete record. Deleting an absent key is
// ErrKeyNotFound and writes nothing.
func (e *Engine) Delete(key string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.store.Load().Delete(key); err != nil {
		return err
	}
	if err := e.journal.AppendDelete(key); err != nil {
		e.logJournalFailure("delete", key, err)
		return err
	}
	return nil
}

// Consolidate compacts the journal. The in-memory state is unaffected.
func (e *Engine) Consolidate() error {
	return e.journal.Consolidate()
}

func (e *Engine) logJournalFailure(op, key string, err error) {
	fields := []ports.Field{
		ports.String("op", op),
		ports.String("key", key),
		ports.Err(err),
	}
	if errors.Is(err, domain.ErrStorageIO) {
		fields = append(fields, ports.Bool("memory_ahead_of_journal", true))
	}
	e.logger.Error("journal append failed", fields...)
}
