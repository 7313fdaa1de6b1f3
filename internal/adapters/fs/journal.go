package fs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/ports"
	"github.com/keeval/keeval/pkg/log"
)

// JournalOptions configures a FileJournal.
type JournalOptions struct {
	// Sync fsyncs the file after every append.
	Sync bool

	// StrictCommands makes ReadAll reject records whose command is neither
	// set nor delete. By default they are returned as-is.
	StrictCommands bool

	// Logger receives journal diagnostics. Nil means no output.
	Logger ports.Logger
}

// DefaultJournalOptions returns options with fsync enabled.
func DefaultJournalOptions() JournalOptions {
	return JournalOptions{Sync: true}
}

// FileJournal implements ports.Journal as a newline-delimited JSON file.
// No file handle is held between calls: each append opens, writes and
// closes the file.
type FileJournal struct {
	path   string
	opts   JournalOptions
	logger ports.Logger

	// mu is the write queue. Appends and Consolidate hold it for their
	// whole duration.
	mu sync.Mutex
}

var _ ports.Journal = (*FileJournal)(nil)

// NewFileJournal creates a FileJournal for path. The file is created on the
// first append.
func NewFileJournal(path string, opts JournalOptions) *FileJournal {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FileJournal{path: path, opts: opts, logger: logger}
}

// Path returns the journal file path.
func (j *FileJournal) Path() string {
	return j.path
}

// AppendSet appends {"command":"set","key":key,"value":value}.
func (j *FileJournal) AppendSet(key string, value domain.Value) error {
	return j.append(domain.SetRecord(key, value))
}

// AppendDelete appends {"command":"delete","key":key}.
func (j *FileJournal) AppendDelete(key string) error {
	return j.append(domain.DeleteRecord(key))
}

func (j *FileJournal) append(rec domain.Record) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := appendToFile(j.path, line, j.opts.Sync); err != nil {
		return fmt.Errorf("%w: append %s: %v", domain.ErrStorageIO, j.path, err)
	}
	return nil
}

// encodeRecord returns the record as one JSON line including the terminator.
func encodeRecord(rec domain.Record) ([]byte, error) {
	b, err := rec.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// appendToFile writes data at the end of path in a single write call,
// creating the file if needed.
func appendToFile(path string, data []byte, sync bool) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ReadAll returns every record in file order. A missing file is an empty
// journal. Blank lines are skipped and the last line may lack a newline.
func (j *FileJournal) ReadAll() ([]domain.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAll()
}

func (j *FileJournal) readAll() ([]domain.Record, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Record{}, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStorageIO, j.path, err)
	}
	defer f.Close()

	return parseRecords(bufio.NewReader(f), j.opts.StrictCommands)
}

// parseRecords reads newline-delimited records from r. Lines may be of any
// length, so a bufio.Reader is used instead of a Scanner.
func parseRecords(r *bufio.Reader, strict bool) ([]domain.Record, error) {
	records := []domain.Record{}
	lineNo := 0
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: read: %v", domain.ErrStorageIO, err)
		}
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				var rec domain.Record
				if uerr := json.Unmarshal(trimmed, &rec); uerr != nil {
					return nil, fmt.Errorf("%w: line %d: %v", domain.ErrCorruptRecord, lineNo, uerr)
				}
				if strict && !rec.IsKnown() {
					return nil, fmt.Errorf("%w: line %d: unknown command %q", domain.ErrCorruptRecord, lineNo, rec.Command)
				}
				records = append(records, rec)
			}
		}
		if errors.Is(err, io.EOF) {
			return records, nil
		}
	}
}

// Consolidate rewrites the journal to the minimal set of records that
// replays to the same state: one set per live key, ordered by when each key
// last became live. Unknown commands and unsupported values are dropped.
// The rewrite goes to a temporary file that is synced and renamed over the
// journal.
func (j *FileJournal) Consolidate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	start := time.Now()

	records, err := j.readAll()
	if err != nil {
		return err
	}

	live := fold(records)

	var buf bytes.Buffer
	for _, rec := range live {
		line, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		buf.Write(line)
	}

	if err := writeFileAtomic(j.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: consolidate %s: %v", domain.ErrStorageIO, j.path, err)
	}

	j.logger.Info("journal consolidated",
		log.String("path", j.path),
		log.Int("records_before", len(records)),
		log.Int("records_after", len(live)),
		log.Duration("took", time.Since(start)),
	)
	return nil
}

// fold applies records in order to an insertion-ordered key map.
// A set for a live key overwrites in place and a set for an absent key goes
// to the end. A delete removes the key. Sets with unsupported values are
// dropped, as replay would ignore them.
func fold(records []domain.Record) []domain.Record {
	index := make(map[string]int)
	var slots []*domain.Record
	for i := range records {
		rec := records[i]
		switch rec.Command {
		case domain.CommandSet:
			if rec.Unsupported() {
				// Replay rejects it, leaving the key as it was.
				continue
			}
			if pos, ok := index[rec.Key]; ok {
				slots[pos] = &rec
				continue
			}
			index[rec.Key] = len(slots)
			slots = append(slots, &rec)
		case domain.CommandDelete:
			if pos, ok := index[rec.Key]; ok {
				slots[pos] = nil
				delete(index, rec.Key)
			}
		}
	}

	live := make([]domain.Record, 0, len(index))
	for _, rec := range slots {
		if rec != nil {
			live = append(live, *rec)
		}
	}
	return live
}

// writeFileAtomic replaces path with data via a synced temp file and rename,
// so a crash leaves either the old or the new journal.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
