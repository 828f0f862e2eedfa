package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	vars := Vars{"prefix": "/opt/tc", "target": "aarch64-weaver-linux-gnu", "jobs": "8"}

	tests := []struct {
		name, in, want string
	}{
		{"plain", "--disable-nls", "--disable-nls"},
		{"single", "--prefix=${prefix}", "--prefix=/opt/tc"},
		{"several", "${prefix}/${target}/include", "/opt/tc/aarch64-weaver-linux-gnu/include"},
		{"escaped", "$${ORIGIN}/lib", "${ORIGIN}/lib"},
		{"bare dollar", "LDFLAGS=-Wl,-rpath,$ORIGIN", "LDFLAGS=-Wl,-rpath,$ORIGIN"},
		{"jobs", "-j${jobs}", "-j8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.in, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_Unresolved(t *testing.T) {
	_, err := Expand("--with-sysroot=${sysroot}", Vars{"prefix": "/p"})
	require.Error(t, err)

	var u *UnresolvedError
	require.ErrorAs(t, err, &u)
	assert.Equal(t, "sysroot", u.Name)
	assert.Contains(t, err.Error(), "${sysroot}")
	assert.True(t, IsUnresolved(err))
}

func TestExpand_Syntax(t *testing.T) {
	_, err := Expand("--prefix=${", Vars{})
	var s *SyntaxError
	require.ErrorAs(t, err, &s)
	assert.False(t, IsUnresolved(err))
}

func TestExpandAll(t *testing.T) {
	got, err := ExpandAll([]string{"--host=${host}", "--target=${target}"}, Vars{"host": "x86_64-pc-linux-gnu", "target": "arm-weaver-linux-gnu"})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"--host=x86_64-pc-linux-gnu", "--target=arm-weaver-linux-gnu"}, got); diff != "" {
		t.Errorf("ExpandAll() mismatch (-want +got):\n%s", diff)
	}

	_, err = ExpandAll([]string{"ok", "${missing}"}, Vars{})
	assert.True(t, IsUnresolved(err))

	got, err = ExpandAll(nil, Vars{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpandMap(t *testing.T) {
	got, err := ExpandMap(map[string]string{"PATH": "${prefix}/bin:${host_path}", "CC": "gcc"}, Vars{"prefix": "/p", "host_path": "/usr/bin"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"PATH": "/p/bin:/usr/bin", "CC": "gcc"}, got)

	_, err = ExpandMap(map[string]string{"B": "${b}", "A": "${a}"}, Vars{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A: ")
}

func TestVarsMerge(t *testing.T) {
	base := Vars{"a": "1", "b": "2"}
	merged := base.Merge(Vars{"b": "3"})
	assert.Equal(t, Vars{"a": "1", "b": "3"}, merged)
	assert.Equal(t, "2", base["b"])
}
