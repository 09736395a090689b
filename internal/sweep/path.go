package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a subdivision: each element is the cell index chosen at one
// level of recursion, starting from the top-level rectangle.
type Path []int

// String returns the comma-joined indices, the form accepted by --skip-to.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// ParsePath parses "4,2,0". Empty input yields a nil path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	p := make(Path, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid path element %q in %q", f, s)
		}
		p = append(p, n)
	}
	return p, nil
}

// Compare orders paths lexicographically; a proper prefix sorts first.
func (p Path) Compare(o Path) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}

// Equal reports whether both paths hold the same indices.
func (p Path) Equal(o Path) bool {
	return p.Compare(o) == 0
}

// Truncate returns at most the first n elements of p.
func (p Path) Truncate(n int) Path {
	if len(p) <= n {
		return p
	}
	return p[:n]
}

// Child returns a new path extending p with index i.
func (p Path) Child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}
