package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"gcc-9.5.0", "gcc-13.2.0", -1},
		{"v6.10", "v6.9", 1},
		{"2.42", "2.42", 0},
		{"v007", "v7", 0},
		{"glibc-2.39", "glibc-2.39.9000", -1},
		{"master", "main", 1},
		{"", "a", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, compareNatural(tt.a, tt.b))
			assert.Equal(t, -tt.want, compareNatural(tt.b, tt.a))
		})
	}
}

func TestVersionTokens(t *testing.T) {
	for _, v := range []string{"", "latest", "LATEST", "master", "main", "HEAD", "tip", " head "} {
		assert.True(t, IsLatest(v), v)
	}
	for _, v := range []string{"v6.6", "gcc-14", "0123456789abcdef0123456789abcdef01234567"} {
		assert.False(t, IsLatest(v), v)
	}
	assert.True(t, IsCommitHash("0123456789abcdef0123456789abcdef01234567"))
	assert.False(t, IsCommitHash("0123456789ABCDEF0123456789ABCDEF01234567"))
	assert.False(t, IsCommitHash("abc123"))
}

func TestParseRefNames(t *testing.T) {
	out := []byte("aaa\trefs/heads/releases/gcc-13\nbbb\trefs/tags/gcc-13.2.0\nbbb\trefs/tags/gcc-13.2.0^{}\n\nccc\trefs/tags/gcc-9.5.0\n")
	assert.Equal(t, []string{"gcc-13.2.0", "gcc-13", "gcc-9.5.0"}, parseRefNames(out))
	assert.Empty(t, parseRefNames(nil))
}
