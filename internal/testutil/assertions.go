package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertRanBefore checks that a command containing first was recorded, and
// that it precedes every command containing second.
func AssertRanBefore(t *testing.T, f *FakeRunner, first, second string) {
	t.Helper()
	i, j := f.IndexOf(first), f.IndexOf(second)
	require.NotEqual(t, -1, i, "no command matching %q was run", first)
	require.NotEqual(t, -1, j, "no command matching %q was run", second)
	require.Less(t, i, j, "expected %q to run before %q", first, second)
}
