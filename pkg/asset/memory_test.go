package asset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

func TestMemoryLoaderDistinctHandles(t *testing.T) {
	m := NewMemoryLoader()
	m.Register("fx/bullet", New("Bullet"))

	a, err := m.Load("fx/bullet")
	require.NoError(t, err)
	b, err := m.Load("fx/bullet")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "fx/bullet", a.Path)
	assert.EqualValues(t, 2, m.Loads())
	assert.Equal(t, []string{"fx/bullet"}, m.List())
}

func TestMemoryLoaderNotFound(t *testing.T) {
	m := NewMemoryLoader()
	_, err := m.Load("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestMemoryLoaderHold(t *testing.T) {
	m := NewMemoryLoader()
	m.Register("a", New("A"))

	release := m.Hold()
	req := m.LoadAsync(context.Background(), "a")

	select {
	case <-req.Done():
		t.Fatal("load completed while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release()
	<-req.Done()
	tmpl, err := req.Result()
	require.NoError(t, err)
	assert.Equal(t, "A", tmpl.Name)
}

func TestLoadAsyncCancelled(t *testing.T) {
	m := NewMemoryLoader()
	m.Register("a", New("A"))
	release := m.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	req := m.LoadAsync(ctx, "a")
	cancel()

	<-req.Done()
	tmpl, err := req.Result()
	assert.Nil(t, tmpl)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompleted(t *testing.T) {
	tmpl := New("x")
	req := Completed(tmpl, nil)
	<-req.Done()
	got, err := req.Result()
	require.NoError(t, err)
	assert.Same(t, tmpl, got)
}
