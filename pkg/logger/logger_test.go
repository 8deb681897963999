package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("valid level", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Encoding: "console"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	ctx := context.WithValue(context.Background(), TaskKey, "spawn-cube")
	ctx = context.WithValue(ctx, SceneKey, "SampleScene")
	WithContext(ctx).Info("spawned")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "spawn-cube", fields["task"])
	assert.Equal(t, "SampleScene", fields["scene"])
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))

	ctx := context.WithValue(context.Background(), TaskKey, "coroutine")
	fields := Fields(ctx)
	require.Len(t, fields, 1)
	assert.Equal(t, "task", fields[0].Key)
	assert.Equal(t, "coroutine", fields[0].String)
}

func TestOr(t *testing.T) {
	own := zap.NewNop()
	assert.Same(t, own, Or(own, "pool"))
	assert.NotNil(t, Or(nil, "pool"))
}
