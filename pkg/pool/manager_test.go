package pool

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/prefabpool/pkg/asset"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/hierarchy"
	"github.com/ajitpratap0/prefabpool/pkg/json"
	"github.com/ajitpratap0/prefabpool/pkg/resource"
	"github.com/ajitpratap0/prefabpool/pkg/scheduler"
)

type fixture struct {
	world  *hierarchy.World
	loader *asset.MemoryLoader
	cache  *resource.Cache
	mgr    *Manager
	bullet *asset.Template
}

func newFixture(t *testing.T, opts ...resource.Option) *fixture {
	t.Helper()
	f := &fixture{world: hierarchy.NewWorld("main"), loader: asset.NewMemoryLoader()}
	f.loader.Register("fx/bullet", asset.New("Bullet", asset.New("Trail")))
	f.loader.Register("fx/spark", asset.New("Spark"))
	opts = append([]resource.Option{resource.WithLogger(zaptest.NewLogger(t))}, opts...)
	f.cache = resource.New(f.world, f.loader, opts...)
	f.mgr = NewManager(f.cache, WithLogger(zaptest.NewLogger(t)))

	var err error
	f.bullet, err = f.cache.ResolveTemplate("fx/bullet")
	require.NoError(t, err)
	return f
}

func (f *fixture) get(t *testing.T, parent *hierarchy.Node, flags Flags) *hierarchy.Node {
	t.Helper()
	n, err := f.mgr.GetOrCreate(f.bullet, parent, flags)
	require.NoError(t, err)
	require.NotNil(t, n)
	return n
}

// assertExclusive checks that every node sits in exactly the set its state implies.
func assertExclusive(t *testing.T, m *Manager, tmpl *asset.Template, nodes ...*hierarchy.Node) {
	t.Helper()
	enabled, disabled := m.enabled[tmpl], m.disabled[tmpl]
	for _, n := range nodes {
		inst, ok := InstanceOf(n)
		require.True(t, ok)
		inEnabled := enabled != nil && enabled.contains(inst)
		inDisabled := disabled != nil && disabled.contains(inst)
		assert.False(t, inEnabled && inDisabled, "%s is in both sets", inst.ID())
		switch inst.member {
		case memberEnabled:
			assert.True(t, inEnabled)
		case memberDisabled:
			assert.True(t, inDisabled)
		default:
			assert.False(t, inEnabled || inDisabled)
		}
	}
}

func TestReuseThenCreate(t *testing.T) {
	f := newFixture(t)
	var first []*hierarchy.Node
	for i := 0; i < 3; i++ {
		first = append(first, f.get(t, nil, FlagNone))
	}
	for _, n := range first {
		n.SetActive(false)
	}
	require.Equal(t, 3, f.mgr.DisabledCount(f.bullet))
	require.Zero(t, f.mgr.EnabledCount(f.bullet))
	assertExclusive(t, f.mgr, f.bullet, first...)

	for i := 0; i < 3; i++ {
		n := f.get(t, nil, FlagNone)
		assert.Same(t, first[i], n, "reuse %d", i)
		assert.True(t, n.ActiveInHierarchy())
		assert.Equal(t, 2, ShowCount(n))
	}
	extra := f.get(t, nil, FlagNone)
	for _, n := range first {
		assert.NotSame(t, n, extra)
	}
	assert.Equal(t, 1, ShowCount(extra))

	assert.Equal(t, Stats{Created: 4, Reused: 3, Returned: 3}, f.mgr.Stats())
	assert.Equal(t, 4, f.mgr.EnabledCount(f.bullet))
	assertExclusive(t, f.mgr, f.bullet, append(first, extra)...)
}

func TestNewInstanceNameAndState(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagResetOnReturn)
	inst, ok := InstanceOf(n)
	require.True(t, ok)

	assert.Equal(t, "Bullet", n.Name())
	assert.Same(t, f.bullet, inst.Template())
	assert.Equal(t, FlagResetOnReturn, inst.Flags())
	assert.Equal(t, StateActive, inst.State())
	assert.NotEqual(t, [16]byte{}, [16]byte(inst.ID()))

	n.SetActive(false)
	assert.Equal(t, StateDisabled, inst.State())
	n.Destroy()
	assert.Equal(t, StateDestroyed, inst.State())
}

func TestHoldExclusion(t *testing.T) {
	f := newFixture(t)
	held := f.get(t, nil, FlagNone)
	SetHold(held, true)
	held.SetActive(false)
	require.Equal(t, 1, f.mgr.DisabledCount(f.bullet))

	n := f.get(t, nil, FlagNone)
	assert.NotSame(t, held, n)
	assert.Equal(t, 1, f.mgr.DisabledCount(f.bullet))

	SetHold(held, false)
	assert.Same(t, held, f.get(t, nil, FlagNone))
}

func TestPreferSameParent(t *testing.T) {
	f := newFixture(t)
	parent := f.world.NewRoot("Parent")
	loose := f.get(t, nil, FlagNone)
	nested := f.get(t, parent, FlagNone)
	loose.SetActive(false)
	nested.SetActive(false)

	got := f.get(t, parent, FlagNone)
	assert.Same(t, nested, got)

	// no disabled instance under other, so the loose one is moved there
	other := f.world.NewRoot("Other")
	got = f.get(t, other, FlagNone)
	assert.Same(t, loose, got)
	assert.Same(t, other, got.Parent())
}

func TestReuseUnderNilParentMovesToActiveScene(t *testing.T) {
	f := newFixture(t)
	parent := f.world.NewPersistentRoot("Keep")
	n := f.get(t, parent, FlagNone)
	n.SetActive(false)

	got := f.get(t, nil, FlagNone)
	require.Same(t, n, got)
	assert.Nil(t, got.Parent())
	assert.Same(t, f.world.ActiveScene(), got.Scene())
	assert.True(t, got.ActiveInHierarchy())
}

func TestHoldParentPredicate(t *testing.T) {
	f := newFixture(t)
	a := f.world.NewRoot("A")
	b := f.world.NewRoot("B")

	pinned := f.get(t, a, FlagHoldParent)
	pinned.SetActive(false)

	fromB := f.get(t, b, FlagNone)
	assert.NotSame(t, pinned, fromB, "hold-parent instance is not moved to another parent")
	assert.Equal(t, 1, f.mgr.DisabledCount(f.bullet))

	fromNil := f.get(t, nil, FlagNone)
	assert.NotSame(t, pinned, fromNil)

	assert.Same(t, pinned, f.get(t, a, FlagNone))

	// parked under the pool root it may go anywhere
	f.mgr.CollapseAll(nil)
	require.Same(t, f.mgr.Root(), pinned.Parent())
	c := f.world.NewRoot("C")
	var reused bool
	for i := 0; i < 3; i++ {
		if f.get(t, c, FlagNone) == pinned {
			reused = true
		}
	}
	assert.True(t, reused)
	assert.Same(t, c, pinned.Parent())
}

func TestNotifyDestroyedIdempotent(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagNone)
	inst, _ := InstanceOf(n)

	f.mgr.NotifyDestroyed(inst)
	assert.Zero(t, f.mgr.Count(f.bullet))
	f.mgr.NotifyDestroyed(inst)
	assert.Zero(t, f.mgr.Count(f.bullet))
	assert.EqualValues(t, 1, f.mgr.Stats().Destroyed)

	f.mgr.NotifyDestroyed(nil)
}

func TestDestroyedInstanceLeavesPool(t *testing.T) {
	f := newFixture(t)
	active := f.get(t, nil, FlagNone)
	idle := f.get(t, nil, FlagNone)
	idle.SetActive(false)

	deactivations := 0
	OnDeactivate(active, "count", func(int) { deactivations++ })

	active.Destroy()
	idle.Destroy()
	assert.Zero(t, f.mgr.Count(f.bullet))
	assert.Zero(t, deactivations, "a destroyed instance is not returned")
	assert.EqualValues(t, 2, f.mgr.Stats().Destroyed)

	fresh := f.get(t, nil, FlagNone)
	assert.NotSame(t, idle, fresh)
	assert.NotSame(t, active, fresh)
}

func TestTransformReset(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagResetOnReturn)
	require.Equal(t, hierarchy.Vec3{}, n.LocalPosition())

	n.SetLocalPosition(hierarchy.Vec3{X: 5})
	n.SetLocalRotation(hierarchy.Euler(0, 90, 0))
	n.SetActive(false)

	assert.Equal(t, hierarchy.Vec3{}, n.LocalPosition())
	assert.Equal(t, hierarchy.Identity, n.LocalTransform().Rotation)
	assert.Equal(t, hierarchy.One, n.LocalTransform().Scale)
}

func TestTransformKeptWithoutResetFlag(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagNone)
	n.SetLocalPosition(hierarchy.Vec3{X: 5})
	n.SetActive(false)
	assert.Equal(t, hierarchy.Vec3{X: 5}, n.LocalPosition())
}

func TestSnapshotTakenFromTemplate(t *testing.T) {
	f := newFixture(t)
	tmpl := asset.New("Offset")
	tmpl.Transform.Position = hierarchy.Vec3{X: 1, Y: 2, Z: 3}
	n, err := f.mgr.GetOrCreate(tmpl, nil, FlagResetOnReturn)
	require.NoError(t, err)

	n.Translate(hierarchy.Vec3{Z: 10})
	n.SetActive(false)
	assert.Equal(t, hierarchy.Vec3{X: 1, Y: 2, Z: 3}, n.LocalPosition())
}

func TestManualReturn(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagManualReturn)
	inst, _ := InstanceOf(n)

	n.SetActive(false)
	assert.Equal(t, 1, f.mgr.EnabledCount(f.bullet), "manual-return instances stay enabled")

	inst.ReturnToPool()
	assert.Equal(t, 1, f.mgr.DisabledCount(f.bullet))
	assert.Zero(t, f.mgr.EnabledCount(f.bullet))
	assertExclusive(t, f.mgr, f.bullet, n)

	assert.Same(t, n, f.get(t, nil, FlagNone))
}

func TestReturnToPoolFiresOnce(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagManualReturn)
	var seen []int
	OnDeactivate(n, "seen", func(c int) { seen = append(seen, c) })

	Deactivate(n, true)
	Deactivate(n, true)
	assert.Equal(t, []int{1}, seen)
	assert.False(t, n.ActiveSelf())
}

func TestCallbacks(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagNone)
	child := n.Child(0)

	var activated, deactivated []int
	cb := func(c int) { activated = append(activated, c) }
	require.True(t, OnActivate(child, "a", cb))
	require.True(t, OnActivate(child, "a", cb))
	require.True(t, OnDeactivate(n, "d", func(c int) { deactivated = append(deactivated, c) }))

	n.SetActive(false)
	require.Same(t, n, f.get(t, nil, FlagNone))
	n.SetActive(false)
	require.Same(t, n, f.get(t, nil, FlagNone))

	assert.Equal(t, []int{2, 3}, activated)
	assert.Equal(t, []int{1, 2}, deactivated)

	inst, _ := InstanceOf(n)
	assert.True(t, inst.RemoveOnActivate("a"))
	assert.False(t, inst.RemoveOnActivate("a"))
	assert.True(t, inst.RemoveOnDeactivate("d"))

	loose := f.world.NewRoot("Loose")
	assert.False(t, OnActivate(loose, "a", cb))
	assert.Equal(t, -1, ShowCount(loose))
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	active := f.get(t, nil, FlagNone)
	idle := f.get(t, nil, FlagNone)
	idle.SetActive(false)
	var deactivations int
	OnDeactivate(active, "count", func(int) { deactivations++ })

	f.mgr.ClearAll()

	assert.True(t, active.Destroyed())
	assert.True(t, idle.Destroyed())
	assert.Zero(t, f.mgr.Count(f.bullet))
	assert.Zero(t, deactivations)
	assert.False(t, f.mgr.clearing)

	n := f.get(t, nil, FlagNone)
	assert.False(t, n.Destroyed())
	assert.Equal(t, 1, f.mgr.EnabledCount(f.bullet))
}

func TestCollapseAll(t *testing.T) {
	f := newFixture(t)
	parent := f.world.NewRoot("Parent")
	a := f.get(t, parent, FlagNone)
	b := f.get(t, parent, FlagManualReturn)
	c := f.get(t, nil, FlagNone)
	c.SetActive(false)

	f.mgr.CollapseAll(nil)

	root := f.mgr.Root()
	assert.True(t, root.Hidden())
	assert.False(t, root.ActiveSelf())
	assert.True(t, root.Scene().Persistent())
	for _, n := range []*hierarchy.Node{a, b, c} {
		assert.Same(t, root, n.Parent())
		assert.False(t, n.ActiveInHierarchy())
	}
	assert.Zero(t, f.mgr.EnabledCount(f.bullet))
	assert.Equal(t, 3, f.mgr.DisabledCount(f.bullet))
	assertExclusive(t, f.mgr, f.bullet, a, b, c)

	// collapsed instances survive a scene change
	f.world.LoadScene("next")
	assert.False(t, a.Destroyed())
	got := f.get(t, nil, FlagNone)
	assert.True(t, got == a || got == b || got == c)
	assert.Same(t, f.world.ActiveScene(), got.Scene())
}

func TestCollapseAllIntoCustomRoot(t *testing.T) {
	f := newFixture(t)
	stash := f.world.NewInactiveChild("Stash", nil)
	n := f.get(t, nil, FlagNone)

	f.mgr.CollapseAll(stash)
	assert.Same(t, stash, n.Parent())
	assert.Equal(t, 1, f.mgr.DisabledCount(f.bullet))
}

func TestReuseDisabled(t *testing.T) {
	f := newFixture(t)
	f.mgr.SetReuse(false)
	assert.False(t, f.mgr.Reuse())

	n := f.get(t, nil, FlagNone)
	n.SetActive(false)
	assert.Zero(t, f.mgr.Count(f.bullet))
	assert.NotSame(t, n, f.get(t, nil, FlagNone))

	m := NewManager(f.cache, WithReuse(false))
	assert.False(t, m.Reuse())
}

func TestTemplateIdentityKeys(t *testing.T) {
	f := newFixture(t)
	other, err := f.cache.ResolveTemplate("fx/bullet", resource.NoCache(), resource.NoSave())
	require.NoError(t, err)
	require.NotSame(t, f.bullet, other)

	n := f.get(t, nil, FlagNone)
	n.SetActive(false)
	m, err := f.mgr.GetOrCreate(other, nil, FlagNone)
	require.NoError(t, err)
	assert.NotSame(t, n, m)
	assert.Equal(t, 1, f.mgr.Count(f.bullet))
	assert.Equal(t, 1, f.mgr.Count(other))
}

func TestGetOrCreateErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.GetOrCreate(nil, nil, FlagNone)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNullSource))

	_, err = f.mgr.GetOrCreatePath("fx/missing", nil, FlagNone)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = f.mgr.GetOrCreate(asset.New(""), nil, FlagNone)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInstantiate))
}

func TestGetOrCreateIntoDestroyedParent(t *testing.T) {
	f := newFixture(t)
	n := f.get(t, nil, FlagNone)
	n.SetActive(false)
	f.mgr.CollapseAll(nil)
	require.Same(t, f.mgr.Root(), n.Parent())

	gone := f.world.NewRoot("Gone")
	gone.Destroy()
	got, err := f.mgr.GetOrCreate(f.bullet, gone, FlagNone)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNullSource))
	assert.Nil(t, got)

	// the parked instance is untouched
	assert.Same(t, f.mgr.Root(), n.Parent())
	assert.False(t, n.ActiveSelf())
	assert.Equal(t, 0, f.mgr.EnabledCount(f.bullet))
	assert.Equal(t, 1, f.mgr.DisabledCount(f.bullet))
	assert.Zero(t, f.mgr.Stats().Reused)

	// the same request without a spare fails the same way
	fresh := newFixture(t)
	_, err = fresh.mgr.GetOrCreate(fresh.bullet, gone, FlagNone)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNullSource))
	assert.Zero(t, fresh.mgr.Count(fresh.bullet))
}

func TestGetOrCreateUsesPreload(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.AddPreload(f.bullet, 2))
	spares := f.cache.PreloadRoot().Children()

	a := f.get(t, nil, FlagNone)
	b := f.get(t, nil, FlagNone)
	assert.Same(t, spares[0], a)
	assert.Same(t, spares[1], b)
	assert.Equal(t, "Bullet", a.Name())
	assert.False(t, f.cache.IsPreloaded(f.bullet))
	assert.Equal(t, 2, f.mgr.EnabledCount(f.bullet))
}

func TestGetOrCreateAsync(t *testing.T) {
	f := newFixture(t)
	s := scheduler.New(scheduler.WithLogger(zaptest.NewLogger(t)))
	parent := f.world.NewRoot("Parent")

	var got *hierarchy.Node
	s.Go(context.Background(), "spawn", func(ctx context.Context, tk *scheduler.Task) error {
		var err error
		got, err = f.mgr.GetOrCreateAsync(ctx, tk, "fx/spark", parent, FlagNone)
		return err
	})
	require.True(t, s.Drain(1000))
	require.NoError(t, s.Wait())
	require.NotNil(t, got)
	assert.Equal(t, "Spark", got.Name())
	assert.Same(t, parent, got.Parent())
}

func TestOccupancy(t *testing.T) {
	f := newFixture(t, resource.WithEditorMode())
	for i := 0; i < 3; i++ {
		f.get(t, nil, FlagNone)
	}
	spark, err := f.mgr.GetOrCreatePath("fx/spark", nil, FlagNone)
	require.NoError(t, err)
	spark.SetActive(false)

	want := []Occupancy{
		{Path: "fx/bullet", Enabled: 3},
		{Path: "fx/spark", Disabled: 1},
	}
	assert.Equal(t, want, f.mgr.Occupancy())

	var buf bytes.Buffer
	require.NoError(t, f.mgr.DumpOccupancy(&buf))
	var decoded []Occupancy
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, want, decoded)

	f.mgr.LogOccupancy()
}

func TestOccupancyMergesSamePath(t *testing.T) {
	f := newFixture(t)
	other, err := f.cache.ResolveTemplate("fx/bullet", resource.NoCache(), resource.NoSave())
	require.NoError(t, err)

	f.get(t, nil, FlagNone)
	_, err = f.mgr.GetOrCreate(other, nil, FlagNone)
	require.NoError(t, err)

	assert.Equal(t, []Occupancy{{Path: "fx/bullet", Enabled: 2}}, f.mgr.Occupancy())
}

func TestFlags(t *testing.T) {
	f := FlagHoldParent | FlagResetOnReturn
	assert.True(t, f.Has(FlagHoldParent))
	assert.False(t, f.Has(FlagManualReturn))
	assert.Equal(t, "hold-parent|reset-on-return", f.String())
	assert.Equal(t, "none", FlagNone.String())

	parsed, ok := ParseFlags("reset-on-return, hold-parent")
	require.True(t, ok)
	assert.Equal(t, f, parsed)
	_, ok = ParseFlags("sticky")
	assert.False(t, ok)
}

func TestWithoutPreload(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.AddPreload(f.bullet, 1))
	m := NewManager(f.cache, WithPreload(false))

	_, err := m.GetOrCreate(f.bullet, nil, FlagNone)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.PreloadCount(f.bullet))
}
