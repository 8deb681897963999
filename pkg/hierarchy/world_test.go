package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSceneKeepsPersistentRoots(t *testing.T) {
	w := NewWorld("level-1")
	transient := w.NewRoot("enemy")
	kept := w.NewPersistentRoot("pool")

	next := w.LoadScene("level-2")
	assert.Equal(t, "level-2", next.Name())
	assert.True(t, transient.Destroyed())
	assert.False(t, kept.Destroyed())
	assert.Equal(t, []*Node{kept}, w.PersistentScene().Roots())
	assert.Empty(t, w.ActiveScene().Roots())
}

func TestMoveToActiveScene(t *testing.T) {
	w := NewWorld("main")
	holder := w.NewPersistentRoot("holder")
	n := w.NewChild("n", holder)

	require.Error(t, w.MoveToActiveScene(n))

	require.NoError(t, n.SetParent(nil))
	assert.Equal(t, w.PersistentScene(), n.Scene())

	require.NoError(t, w.MoveToActiveScene(n))
	assert.Equal(t, w.ActiveScene(), n.Scene())
	assert.NotContains(t, w.PersistentScene().Roots(), n)
}

func TestFind(t *testing.T) {
	w := NewWorld("main")
	root := w.NewRoot("root")
	w.NewChild("needle", root)
	w.NewPersistentRoot("persistent-needle")

	assert.NotNil(t, w.Find("needle"))
	assert.NotNil(t, w.Find("persistent-needle"))
	assert.Nil(t, w.Find("missing"))
}
