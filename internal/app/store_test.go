package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeval/keeval/internal/domain"
)

func TestValueStore_SetGet(t *testing.T) {
	s := NewValueStore()
	values := map[string]domain.Value{
		"num":    domain.Number(42),
		"str":    domain.Text("hello"),
		"bool":   domain.Bool(true),
		"obj":    domain.Object(map[string]domain.Value{"a": domain.Number(1), "b": domain.Number(2)}),
		"arr":    domain.List(domain.Number(1), domain.Number(2), domain.Number(3)),
		"":       domain.Text("empty"),
		"nested": domain.Object(map[string]domain.Value{"a": domain.Object(map[string]domain.Value{"b": domain.Object(map[string]domain.Value{"c": domain.Text("deep")})})}),
	}

	for k, v := range values {
		require.NoError(t, s.Set(k, v))
	}
	for k, want := range values {
		got, err := s.Get(k)
		require.NoError(t, err, "key %q", k)
		assert.True(t, domain.Equal(want, got), "key %q: got %v, want %v", k, got, want)
	}
}

func TestValueStore_Overwrite(t *testing.T) {
	s := NewValueStore()
	require.NoError(t, s.Set("k", domain.Text("x")))
	require.NoError(t, s.Set("k", domain.Text("y")))

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Text("y"), got))
}

func TestValueStore_LargeRecord(t *testing.T) {
	s := NewValueStore()
	fields := make(map[string]domain.Value, 10000)
	for i := 0; i < 10000; i++ {
		fields[fmt.Sprintf("key%d", i)] = domain.Text(fmt.Sprintf("value%d", i))
	}
	large := domain.Object(fields)

	require.NoError(t, s.Set("large", large))
	got, err := s.Get("large")
	require.NoError(t, err)
	assert.True(t, domain.Equal(large, got))
}

func TestValueStore_Errors(t *testing.T) {
	s := NewValueStore()

	_, err := s.Get("missing")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))

	err = s.Delete("missing")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))

	err = s.Set("\xff", domain.Text("v"))
	assert.True(t, errors.Is(err, domain.ErrInvalidKey))

	_, err = s.Get("\xff")
	assert.True(t, errors.Is(err, domain.ErrInvalidKey))

	err = s.Delete("\xff")
	assert.True(t, errors.Is(err, domain.ErrInvalidKey))

	err = s.Set("k", domain.Value{})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedValueType))

	_, err = s.Get("k")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "rejected set must not store anything")
}

func TestValueStore_Delete(t *testing.T) {
	s := NewValueStore()
	require.NoError(t, s.Set("key", domain.Text("value")))

	require.NoError(t, s.Delete("key"))

	_, err := s.Get("key")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}

func TestValueStore_Concurrent(t *testing.T) {
	s := NewValueStore()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := fmt.Sprintf("k%d", i%8)
			_ = s.Set(k, domain.Number(float64(i)))
			_, _ = s.Get(k)
			_ = s.Delete(k)
		}(i)
	}
	wg.Wait()
}
