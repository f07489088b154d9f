package infra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyComparator(t *testing.T) {
	testcases := []struct {
		name string
		i, j string
		asc  int64
	}{
		{"less", "ann", "bob", -1},
		{"greater", "bob", "ann", 1},
		{"equal", "bob", "bob", 0},
		{"prefix", "bo", "bob", -1},
		{"empty", "", "a", -1},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			require.Equal(tt, tc.asc, AscKeyComparator(tc.i, tc.j))
			require.Equal(tt, -tc.asc, DescKeyComparator(tc.i, tc.j))
		})
	}

	require.Equal(t, int64(-1), AscKeyComparator[uint64](1, 2))
	require.Equal(t, int64(1), AscKeyComparator[float64](2.5, 1.5))
	require.Equal(t, int64(0), DescKeyComparator[int8](-3, -3))
}
