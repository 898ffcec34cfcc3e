package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdrop/cartel/pkg/types"
)

// diamondFixture builds an 8-module diamond-shaped dependency graph:
//
//	m1 -> [m3, m6]
//	m2 -> [m4, m5]
//	m3 -> [m7]
//	m4 -> [m7]
//	m5 -> []
//	m6 -> []
//	m7 -> [m8]
//	m8 -> []
func diamondFixture() []*types.ModuleDefinition {
	mk := func(name string, deps ...string) *types.ModuleDefinition {
		return &types.ModuleDefinition{
			Name:         name,
			Kind:         types.KindService,
			Dependencies: deps,
			ServiceTask:  &types.ServiceTaskSpec{},
		}
	}
	return []*types.ModuleDefinition{
		mk("m1", "m3", "m6"),
		mk("m2", "m4", "m5"),
		mk("m3", "m7"),
		mk("m4", "m7"),
		mk("m5"),
		mk("m6"),
		mk("m7", "m8"),
		mk("m8"),
	}
}

func indexOf(t *testing.T, nodes []*Node, key string) int {
	t.Helper()
	for i, n := range nodes {
		if n.Key == key {
			return i
		}
	}
	require.Failf(t, "key not found", "%s not in result", key)
	return -1
}

func isBefore(t *testing.T, nodes []*Node, a, b string) bool {
	t.Helper()
	return indexOf(t, nodes, a) < indexOf(t, nodes, b)
}

func keys(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out
}

func TestDependencySort(t *testing.T) {
	g, err := Build(diamondFixture(), []string{"m1", "m2"})
	require.NoError(t, err)

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.Len(t, sorted, 8)

	assert.True(t, isBefore(t, sorted, "m8", "m7"))
	assert.True(t, isBefore(t, sorted, "m7", "m3"))
	assert.True(t, isBefore(t, sorted, "m7", "m4"))
	assert.True(t, isBefore(t, sorted, "m3", "m1"))
	assert.True(t, isBefore(t, sorted, "m6", "m1"))
	assert.True(t, isBefore(t, sorted, "m4", "m2"))
	assert.True(t, isBefore(t, sorted, "m5", "m2"))
}

func TestDependencySortPartial(t *testing.T) {
	g, err := Build(diamondFixture(), []string{"m3", "m4", "m2", "m5"})
	require.NoError(t, err)

	sorted, err := g.Sort()
	require.NoError(t, err)

	got := keys(sorted)
	assert.ElementsMatch(t, []string{"m3", "m7", "m8", "m4", "m2", "m5"}, got)
	assert.True(t, isBefore(t, sorted, "m8", "m7"))
	assert.True(t, isBefore(t, sorted, "m7", "m3"))
	assert.True(t, isBefore(t, sorted, "m7", "m4"))
	assert.True(t, isBefore(t, sorted, "m4", "m2"))
	assert.True(t, isBefore(t, sorted, "m5", "m2"))
}

func TestDependencyCycleDetected(t *testing.T) {
	defs := []*types.ModuleDefinition{
		{Name: "a", Kind: types.KindService, Dependencies: []string{"b"}, ServiceTask: &types.ServiceTaskSpec{}},
		{Name: "b", Kind: types.KindService, Dependencies: []string{"a"}, ServiceTask: &types.ServiceTaskSpec{}},
	}
	g, err := Build(defs, []string{"a"})
	require.NoError(t, err)

	_, err = g.Sort()
	require.Error(t, err)
	assert.Equal(t, "The graph contains cycles", err.Error())
}

func TestDependencyMissingReference(t *testing.T) {
	defs := []*types.ModuleDefinition{
		{Name: "a", Kind: types.KindService, Dependencies: []string{"missing"}, ServiceTask: &types.ServiceTaskSpec{}},
	}
	_, err := Build(defs, []string{"a"})
	require.Error(t, err)
}

func TestDependencyCheckAsDependencyRejected(t *testing.T) {
	defs := []*types.ModuleDefinition{
		{Name: "a", Kind: types.KindService, Dependencies: []string{"chk"}, ServiceTask: &types.ServiceTaskSpec{}},
		{Name: "chk", Kind: types.KindCheck, Check: &types.CheckSpec{Command: []string{"true"}}},
	}
	_, err := Build(defs, []string{"a"})
	require.Error(t, err)
}

func TestGroupSort(t *testing.T) {
	g, err := Build(diamondFixture(), []string{"m1", "m2"})
	require.NoError(t, err)

	groups, flat, err := g.GroupSort()
	require.NoError(t, err)
	assert.Len(t, flat, 8)

	levelOf := func(key string) int {
		for i, lvl := range groups {
			for _, n := range lvl {
				if n.Key == key {
					return i
				}
			}
		}
		t.Fatalf("key %s not found in any group", key)
		return -1
	}

	assert.Less(t, levelOf("m8"), levelOf("m7"))
	assert.Less(t, levelOf("m7"), levelOf("m3"))
	assert.Less(t, levelOf("m7"), levelOf("m4"))
	assert.Less(t, levelOf("m3"), levelOf("m1"))
	assert.Less(t, levelOf("m6"), levelOf("m1"))
	assert.Less(t, levelOf("m4"), levelOf("m2"))
	assert.Less(t, levelOf("m5"), levelOf("m2"))
}

func TestPostDependencyOrdersOwnerFirst(t *testing.T) {
	// "post" declares that the target must be deployed AFTER the owner,
	// i.e. the edge's direction is From: the owner's name becomes the
	// target's dependency.
	defs := []*types.ModuleDefinition{
		{
			Name:        "migrate",
			Kind:        types.KindTask,
			ServiceTask: &types.ServiceTaskSpec{Post: []string{"app"}},
		},
		{Name: "app", Kind: types.KindService, ServiceTask: &types.ServiceTaskSpec{}},
	}
	g, err := Build(defs, []string{"migrate", "app"})
	require.NoError(t, err)

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.True(t, isBefore(t, sorted, "migrate", "app"))
}

func TestPostDependencyTargetNotInSelectionIsStillResolved(t *testing.T) {
	// Only "migrate" is selected; "app" is reachable solely through the
	// post edge and must still end up in the resolved subgraph.
	defs := []*types.ModuleDefinition{
		{
			Name:        "migrate",
			Kind:        types.KindTask,
			ServiceTask: &types.ServiceTaskSpec{Post: []string{"app"}},
		},
		{Name: "app", Kind: types.KindService, ServiceTask: &types.ServiceTaskSpec{}},
	}
	g, err := Build(defs, []string{"migrate"})
	require.NoError(t, err)

	_, ok := g.Node("app")
	require.True(t, ok, "post target must be added to the resolved graph")

	sorted, err := g.Sort()
	require.NoError(t, err)
	assert.Len(t, sorted, 2)
	assert.True(t, isBefore(t, sorted, "migrate", "app"))
}

func TestPostDependencyUnknownTargetRejected(t *testing.T) {
	defs := []*types.ModuleDefinition{
		{
			Name:        "migrate",
			Kind:        types.KindTask,
			ServiceTask: &types.ServiceTaskSpec{Post: []string{"does-not-exist"}},
		},
	}
	_, err := Build(defs, []string{"migrate"})
	require.Error(t, err)
}

func TestPostDependencyCheckTargetRejected(t *testing.T) {
	defs := []*types.ModuleDefinition{
		{
			Name:        "migrate",
			Kind:        types.KindTask,
			ServiceTask: &types.ServiceTaskSpec{Post: []string{"chk"}},
		},
		{Name: "chk", Kind: types.KindCheck, Check: &types.CheckSpec{Command: []string{"true"}}},
	}
	_, err := Build(defs, []string{"migrate"})
	require.Error(t, err)
}
