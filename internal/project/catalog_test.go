package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weaver/internal/dag"
)

func mustProject(t *testing.T, name string, deps ...string) *Project {
	t.Helper()
	p, err := New(name, "latest", nil, Layer{Spec: Spec{Dependencies: deps}})
	require.NoError(t, err)
	return p
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(
		mustProject(t, "gmp"),
		mustProject(t, "mpfr", "gmp"),
		mustProject(t, "mpc", "gmp", "mpfr"),
		mustProject(t, "gcc", "mpc", "mpfr", "gmp"),
	)
	require.NoError(t, err)

	deps, err := c.Dependencies("mpc")
	require.NoError(t, err)
	assert.Equal(t, []string{"gmp", "mpfr"}, deps)

	rdeps, err := c.ReverseDependencies("gmp")
	require.NoError(t, err)
	assert.Equal(t, []string{"gcc", "mpc", "mpfr"}, rdeps)

	order, err := c.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"gmp", "mpfr", "mpc", "gcc"}, order)

	closure, err := c.Closure("mpc")
	require.NoError(t, err)
	assert.Equal(t, []string{"gmp", "mpfr"}, closure)

	p, ok := c.Get("mpfr")
	require.True(t, ok)
	assert.Equal(t, "mpfr", p.Name)
	assert.NoError(t, c.CheckConflicts())
}

func TestCatalog_Errors(t *testing.T) {
	t.Run("unknown dependency", func(t *testing.T) {
		_, err := NewCatalog(mustProject(t, "mpfr", "gmp"))
		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
		assert.Equal(t, "gmp", dep.Missing)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := NewCatalog(mustProject(t, "gcc", "glibc"), mustProject(t, "glibc", "gcc"))
		var cycle *dag.CycleError
		assert.ErrorAs(t, err, &cycle)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewCatalog(mustProject(t, "gmp"), mustProject(t, "gmp"))
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("conflict across packages", func(t *testing.T) {
		musl, err := New("musl", "1.2", nil, Layer{Spec: Spec{Conflicts: []string{"glibc"}}})
		require.NoError(t, err)
		c, err := NewCatalog(mustProject(t, "glibc"), musl)
		require.NoError(t, err)
		var conflict *ConflictError
		require.ErrorAs(t, c.CheckConflicts(), &conflict)
		assert.Equal(t, "musl", conflict.Project)
	})
}
