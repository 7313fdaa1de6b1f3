package metrics

import (
	"time"

	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/ports"
)

// instrumentedJournal wraps a ports.Journal and records every call.
type instrumentedJournal struct {
	next ports.Journal
	m    *Metrics
}

// InstrumentJournal returns a Journal that forwards to next and records
// operation counts and latency.
func (m *Metrics) InstrumentJournal(next ports.Journal) ports.Journal {
	return &instrumentedJournal{next: next, m: m}
}

func (j *instrumentedJournal) AppendSet(key string, value domain.Value) error {
	start := time.Now()
	err := j.next.AppendSet(key, value)
	j.m.observeJournal("append_set", start, err)
	return err
}

func (j *instrumentedJournal) AppendDelete(key string) error {
	start := time.Now()
	err := j.next.AppendDelete(key)
	j.m.observeJournal("append_delete", start, err)
	return err
}

func (j *instrumentedJournal) ReadAll() ([]domain.Record, error) {
	start := time.Now()
	records, err := j.next.ReadAll()
	j.m.observeJournal("read_all", start, err)
	return records, err
}

func (j *instrumentedJournal) Consolidate() error {
	start := time.Now()
	err := j.next.Consolidate()
	j.m.observeJournal("consolidate", start, err)
	return err
}
