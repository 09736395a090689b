package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath(" 4, 2,0 ")
	require.NoError(t, err)
	assert.Equal(t, Path{4, 2, 0}, p)
	assert.Equal(t, "4,2,0", p.String())

	p, err = ParsePath("")
	require.NoError(t, err)
	assert.Nil(t, p)

	for _, bad := range []string{"a", "1,,2", "-1"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestPathCompare(t *testing.T) {
	tests := []struct {
		a, b Path
		want int
	}{
		{Path{1}, Path{1}, 0},
		{Path{1}, Path{2}, -1},
		{Path{2, 0}, Path{1, 8}, 1},
		{Path{4}, Path{4, 0}, -1},
		{Path{4, 0}, Path{4}, 1},
		{Path{}, Path{0}, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Compare(tt.b), "%v vs %v", tt.a, tt.b)
	}
}

func TestPathHelpers(t *testing.T) {
	p := Path{1, 2, 3}
	assert.Equal(t, Path{1, 2}, p.Truncate(2))
	assert.Equal(t, p, p.Truncate(5))

	c := p.Child(7)
	assert.Equal(t, Path{1, 2, 3, 7}, c)
	c[0] = 9
	assert.Equal(t, 1, p[0], "Child must not alias the parent")
}
