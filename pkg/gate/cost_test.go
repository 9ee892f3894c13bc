package gate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCost_Empty(t *testing.T) {
	assert.Equal(t, uint64(0), ComputeCost(nil))
	assert.Equal(t, uint64(0), ComputeCost([]byte{}))
}

func TestComputeCost_SingleByteMatchesTable(t *testing.T) {
	table := Table()
	for b := 0; b < 256; b++ {
		assert.Equal(t, uint64(table[b]), ComputeCost([]byte{byte(b)}), "byte %d", b)
		assert.Equal(t, table[b], CostOf(byte(b)))
	}
}

func TestComputeCost_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want uint64
	}{
		{"upper A", "A", 450},
		{"A then B", "AB", 870},
		{"cat", "cat", 360 + 400 + 60},
		{"space", " ", 50},
		{"digits", "09", 200 + 100},
		{"tilde and DEL are free", "~\x7f", 0},
		{"extended ascii is free", "\x80\xff", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeCost([]byte(tt.in)))
		})
	}
}

func TestComputeCost_EarlyExit(t *testing.T) {
	// 2223 * 450 = 1,000,350 is the first running total above the ceiling.
	buf := bytes.Repeat([]byte("A"), 5000)
	got := ComputeCost(buf)
	assert.Equal(t, uint64(1000350), got)
	assert.Greater(t, got, uint64(BudgetHardMax))
}

func TestComputeCost_CeilingBoundary(t *testing.T) {
	buf := bytes.Repeat([]byte("AE"), 1000) // 450 + 360
	require.Equal(t, uint64(810000), ComputeCost(buf))

	// 5000 * 200 lands exactly on the ceiling and must not exit early.
	exact := bytes.Repeat([]byte{'0'}, 5000) // 200 each
	assert.Equal(t, uint64(BudgetHardMax), ComputeCost(exact))

	over := append(exact, ' ')
	assert.Equal(t, uint64(BudgetHardMax)+50, ComputeCost(over))
}

func TestComputeCost_NeverWraps(t *testing.T) {
	buf := bytes.Repeat([]byte{'A'}, 1<<20)
	got := ComputeCost(buf)
	assert.Greater(t, got, uint64(BudgetHardMax))
	assert.LessOrEqual(t, got, uint64(BudgetHardMax)+uint64(MaxByteCost))
}

func TestTable_IsACopy(t *testing.T) {
	tbl := Table()
	tbl['A'] = 0
	assert.Equal(t, uint32(450), CostOf('A'))
}

func TestTable_MaxByteCost(t *testing.T) {
	var max uint32
	for _, v := range Table() {
		if v > max {
			max = v
		}
	}
	assert.Equal(t, MaxByteCost, max)
}

func TestTotalCost(t *testing.T) {
	assert.Equal(t, uint64(0), TotalCost(nil))
	assert.Equal(t, uint64(870), TotalCost([]byte("AB")))

	buf := bytes.Repeat([]byte("A"), 5000)
	assert.Equal(t, uint64(5000*450), TotalCost(buf))
	assert.Less(t, ComputeCost(buf), TotalCost(buf))
}

func BenchmarkComputeCost4K(b *testing.B) {
	buf := bytes.Repeat([]byte("model patch "), 342)
	b.SetBytes(int64(len(buf)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ComputeCost(buf)
	}
}
