package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolchainGraph mirrors the component dependencies of a cross toolchain.
func toolchainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, id := range []string{"gmp", "mpfr", "mpc", "isl", "binutils", "linux", "gcc-static", "glibc", "gcc"} {
		g.AddNode(id)
	}
	edges := [][2]string{
		{"gmp", "mpfr"}, {"gmp", "mpc"}, {"mpfr", "mpc"}, {"gmp", "isl"},
		{"gmp", "gcc-static"}, {"mpfr", "gcc-static"}, {"mpc", "gcc-static"}, {"isl", "gcc-static"},
		{"binutils", "gcc-static"}, {"linux", "glibc"}, {"gcc-static", "glibc"},
		{"glibc", "gcc"}, {"binutils", "gcc"},
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Empty(t, g.Nodes())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("gmp")
	g.AddNode("gmp")
	g.AddNode("mpfr")

	assert.Equal(t, []string{"gmp", "mpfr"}, g.Nodes())
	assert.True(t, g.Has("gmp"))
	assert.False(t, g.Has("mpc"))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("gmp")
		g.AddNode("mpfr")
		require.NoError(t, g.AddEdge("gmp", "mpfr"))

		deps, err := g.Dependencies("mpfr")
		require.NoError(t, err)
		assert.Equal(t, []string{"gmp"}, deps)

		dependents, err := g.Dependents("gmp")
		require.NoError(t, err)
		assert.Equal(t, []string{"mpfr"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("gmp")

		assert.ErrorContains(t, g.AddEdge("dne", "gmp"), "source node not found")
		assert.ErrorContains(t, g.AddEdge("gmp", "dne"), "destination node not found")
		assert.ErrorContains(t, g.AddEdge("gmp", "gmp"), "self-referential edge")

		_, err := g.Dependencies("dne")
		assert.ErrorContains(t, err, "node not found")
		_, err = g.Dependents("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestOrder(t *testing.T) {
	g := toolchainGraph(t)

	got, err := g.Order()
	require.NoError(t, err)
	want := []string{"gmp", "mpfr", "mpc", "isl", "binutils", "linux", "gcc-static", "glibc", "gcc"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}

	t.Run("insertion order breaks ties", func(t *testing.T) {
		g := New()
		g.AddNode("c")
		g.AddNode("b")
		g.AddNode("a")
		require.NoError(t, g.AddEdge("a", "c"))
		got, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, got)
	})
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := toolchainGraph(t)

	anc, err := g.Ancestors("glibc")
	require.NoError(t, err)
	assert.Equal(t, []string{"gmp", "mpfr", "mpc", "isl", "binutils", "linux", "gcc-static"}, anc)

	desc, err := g.Descendants("mpfr")
	require.NoError(t, err)
	assert.Equal(t, []string{"mpc", "gcc-static", "glibc", "gcc"}, desc)

	desc, err = g.Descendants("gcc")
	require.NoError(t, err)
	assert.Empty(t, desc)

	_, err = g.Ancestors("dne")
	assert.Error(t, err)
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("toolchain graph has no cycles", func(t *testing.T) {
		assert.NoError(t, toolchainGraph(t).DetectCycles())
	})

	t.Run("direct cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("glibc")
		g.AddNode("gcc")
		require.NoError(t, g.AddEdge("glibc", "gcc"))
		require.NoError(t, g.AddEdge("gcc", "glibc"))

		err := g.DetectCycles()
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"glibc", "gcc", "glibc"}, cycle.Path)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := toolchainGraph(t)
		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y"))

		err := g.DetectCycles()
		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []string{"y", "z", "y"}, cycle.Path)

		_, err = g.Order()
		assert.ErrorAs(t, err, &cycle)
	})
}
