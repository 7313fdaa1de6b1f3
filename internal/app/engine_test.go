package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeval/keeval/internal/adapters/fs"
	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/ports"
	"github.com/keeval/keeval/pkg/log"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// recordingJournal keeps records in memory and can be told to fail.
type recordingJournal struct {
	mu          sync.Mutex
	records     []domain.Record
	appendErr   error
	consolidate int
}

func (j *recordingJournal) AppendSet(key string, value domain.Value) error {
	return j.append(domain.SetRecord(key, value))
}

func (j *recordingJournal) AppendDelete(key string) error {
	return j.append(domain.DeleteRecord(key))
}

func (j *recordingJournal) append(rec domain.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return j.appendErr
	}
	j.records = append(j.records, rec)
	return nil
}

func (j *recordingJournal) ReadAll() ([]domain.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.Record{}, j.records...), nil
}

func (j *recordingJournal) Consolidate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.consolidate++
	return nil
}

func newFileEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	return NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), log.NewNoopLogger()), path
}

func journalLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := strings.TrimSpace(string(b))
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func TestEngine_SetWritesMemoryAndJournal(t *testing.T) {
	e, path := newFileEngine(t)

	require.NoError(t, e.Set("key1", domain.Text("value1")))

	got, err := e.Get("key1")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Text("value1"), got))
	assert.Equal(t, []string{`{"command":"set","key":"key1","value":"value1"}`}, journalLines(t, path))
}

func TestEngine_ValueShapesRoundTrip(t *testing.T) {
	e, path := newFileEngine(t)
	values := map[string]domain.Value{
		"numKey":  domain.Number(42),
		"boolKey": domain.Bool(true),
		"objKey":  domain.Object(map[string]domain.Value{"a": domain.Number(1), "b": domain.List(domain.Text("x"))}),
		"arrKey":  domain.List(domain.Number(1), domain.Number(2), domain.Number(3)),
		"large":   domain.Text(strings.Repeat("a", 1000000)),
	}
	for k, v := range values {
		require.NoError(t, e.Set(k, v))
	}

	reloaded := NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), mockLogger{})
	_, err := reloaded.Load()
	require.NoError(t, err)

	for k, want := range values {
		got, err := e.Get(k)
		require.NoError(t, err)
		assert.True(t, domain.Equal(want, got), "memory value for %s differs", k)

		got, err = reloaded.Get(k)
		require.NoError(t, err)
		assert.True(t, domain.Equal(want, got), "replayed value for %s differs", k)
	}
}

func TestEngine_Delete(t *testing.T) {
	e, path := newFileEngine(t)
	require.NoError(t, e.Set("key1", domain.Text("value1")))

	require.NoError(t, e.Delete("key1"))

	_, err := e.Get("key1")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
	assert.Equal(t, []string{
		`{"command":"set","key":"key1","value":"value1"}`,
		`{"command":"delete","key":"key1"}`,
	}, journalLines(t, path))
}

func TestEngine_DeleteMissingWritesNothing(t *testing.T) {
	j := &recordingJournal{}
	e := NewEngine(j, mockLogger{})

	err := e.Delete("nonexistent")

	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
	assert.Empty(t, j.records)
}

func TestEngine_RejectedSetWritesNothing(t *testing.T) {
	j := &recordingJournal{}
	e := NewEngine(j, mockLogger{})

	err := e.Set("\xff", domain.Text("v"))
	assert.True(t, errors.Is(err, domain.ErrInvalidKey))

	err = e.Set("k", domain.Value{})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedValueType))

	assert.Empty(t, j.records)
}

func TestEngine_AppendFailureKeepsMemory(t *testing.T) {
	storageErr := fmt.Errorf("%w: disk full", domain.ErrStorageIO)
	j := &recordingJournal{appendErr: storageErr}
	e := NewEngine(j, mockLogger{})

	err := e.Set("k", domain.Number(1))
	assert.True(t, errors.Is(err, domain.ErrStorageIO))

	got, getErr := e.Get("k")
	require.NoError(t, getErr)
	assert.True(t, domain.Equal(domain.Number(1), got))
}

func TestEngine_Overwrite(t *testing.T) {
	e, path := newFileEngine(t)
	require.NoError(t, e.Set("k", domain.Text("x")))
	require.NoError(t, e.Set("k", domain.Text("y")))

	got, err := e.Get("k")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Text("y"), got))
	assert.Len(t, journalLines(t, path), 2)

	require.NoError(t, e.Consolidate())
	assert.Equal(t, []string{`{"command":"set","key":"k","value":"y"}`}, journalLines(t, path))
}

func TestEngine_ConsolidateScenario(t *testing.T) {
	e, path := newFileEngine(t)
	require.NoError(t, e.Set("a", domain.Number(1)))
	require.NoError(t, e.Set("b", domain.Number(2)))
	require.NoError(t, e.Delete("a"))

	require.NoError(t, e.Consolidate())

	assert.Equal(t, []string{`{"command":"set","key":"b","value":2}`}, journalLines(t, path))
	got, err := e.Get("b")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Number(2), got))
}

func TestEngine_ConsolidateDelegates(t *testing.T) {
	j := &recordingJournal{}
	e := NewEngine(j, mockLogger{})

	require.NoError(t, e.Consolidate())
	assert.Equal(t, 1, j.consolidate)
}

func TestEngine_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := `{"command":"set","key":"key1","value":"value1"}` + "\n" +
		`{"command":"set","key":"key2","value":"value2"}` + "\n" +
		`{"command":"delete","key":"key1"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	e := NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), mockLogger{})
	stats, err := e.Load()
	require.NoError(t, err)

	assert.Equal(t, LoadStats{Records: 3, Sets: 2, Deletes: 1}, stats)
	_, err = e.Get("key1")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
	got, err := e.Get("key2")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Text("value2"), got))
}

func TestEngine_LoadFreshJournal(t *testing.T) {
	e, path := newFileEngine(t)

	stats, err := e.Load()
	require.NoError(t, err)
	assert.Equal(t, LoadStats{}, stats)

	_, err = e.Get("anything")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngine_LoadSkipsUnknownAndRejected(t *testing.T) {
	j := &recordingJournal{records: []domain.Record{
		domain.SetRecord("a", domain.Number(1)),
		{Command: "expire", Key: "a"},
		domain.DeleteRecord("ghost"),
		domain.SetRecord("\xff", domain.Number(2)),
	}}
	e := NewEngine(j, mockLogger{})

	stats, err := e.Load()
	require.NoError(t, err)

	assert.Equal(t, LoadStats{Records: 4, Sets: 1, Skipped: 3}, stats)
	got, err := e.Get("a")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Number(1), got))
}

func TestEngine_LoadSkipsUnsupportedValues(t *testing.T) {
	e, path := newFileEngine(t)
	content := `{"command":"set","key":"a","value":1}` + "\n" +
		`{"command":"set","key":"n","value":{"x":null}}` + "\n" +
		`{"command":"set","key":"b","value":2}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	stats, err := e.Load()
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Records: 3, Sets: 2, Skipped: 1}, stats)

	got, err := e.Get("b")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Number(2), got))
	_, err = e.Get("n")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "err = %v", err)

	require.NoError(t, e.Consolidate())
	assert.Equal(t, []string{
		`{"command":"set","key":"a","value":1}`,
		`{"command":"set","key":"b","value":2}`,
	}, journalLines(t, path))
}

func TestEngine_LoadReplacesState(t *testing.T) {
	j := &recordingJournal{}
	e := NewEngine(j, mockLogger{})
	require.NoError(t, e.Set("a", domain.Number(1)))
	j.records = nil

	_, err := e.Load()
	require.NoError(t, err)

	_, err = e.Get("a")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}

func TestEngine_ReplayMatchesMemory(t *testing.T) {
	e, path := newFileEngine(t)
	ops := []struct {
		del bool
		key string
		val float64
	}{
		{false, "a", 1}, {false, "b", 2}, {true, "a", 0}, {false, "c", 3},
		{false, "a", 4}, {false, "b", 5}, {true, "c", 0}, {false, "d", 6},
	}
	for _, op := range ops {
		if op.del {
			require.NoError(t, e.Delete(op.key))
		} else {
			require.NoError(t, e.Set(op.key, domain.Number(op.val)))
		}
	}

	for _, consolidate := range []bool{false, true} {
		if consolidate {
			require.NoError(t, e.Consolidate())
			assert.Len(t, journalLines(t, path), 3)
		}
		replayed := NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), mockLogger{})
		_, err := replayed.Load()
		require.NoError(t, err)

		for _, k := range []string{"a", "b", "c", "d"} {
			want, wantErr := e.Get(k)
			got, gotErr := replayed.Get(k)
			assert.Equal(t, wantErr, gotErr, "key %s", k)
			assert.True(t, domain.Equal(want, got), "key %s: got %v, want %v", k, got, want)
		}
	}
}

func TestEngine_ConcurrentSets(t *testing.T) {
	e, path := newFileEngine(t)
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, e.Set(fmt.Sprintf("key%d", i), domain.Text(fmt.Sprintf("value%d", i))))
		}(i)
	}
	wg.Wait()

	assert.Len(t, journalLines(t, path), n)

	replayed := NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), mockLogger{})
	stats, err := replayed.Load()
	require.NoError(t, err)
	assert.Equal(t, n, stats.Sets)
	for i := 0; i < n; i++ {
		got, err := replayed.Get(fmt.Sprintf("key%d", i))
		require.NoError(t, err)
		assert.True(t, domain.Equal(domain.Text(fmt.Sprintf("value%d", i)), got))
	}
}

func TestEngine_ConcurrentSameKeyOrdering(t *testing.T) {
	e, path := newFileEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, e.Set("hot", domain.Number(float64(i))))
		}(i)
	}
	wg.Wait()

	want, err := e.Get("hot")
	require.NoError(t, err)

	replayed := NewEngine(fs.NewFileJournal(path, fs.DefaultJournalOptions()), mockLogger{})
	_, err = replayed.Load()
	require.NoError(t, err)
	got, err := replayed.Get("hot")
	require.NoError(t, err)
	assert.True(t, domain.Equal(want, got), "journal order diverged from memory order: got %v, want %v", got, want)
}

func TestEngines_Independent(t *testing.T) {
	a, _ := newFileEngine(t)
	b, _ := newFileEngine(t)

	require.NoError(t, a.Set("k", domain.Number(1)))

	_, err := b.Get("k")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}
