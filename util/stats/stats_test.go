package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpRecord(t *testing.T) {
	assert := assert.New(t)

	var op Op
	assert.Equal(uint32(0), op.Count())
	assert.Equal(float64(0), op.MicrosPerOp())

	start := time.Now().Add(-time.Millisecond)
	op.Record(start)
	op.Record(start)
	assert.Equal(uint32(2), op.Count())
	assert.GreaterOrEqual(op.MicrosPerOp(), float64(1000))
}

func TestCounter(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(10)
	assert.Equal(t, uint64(11), c.Load())
}

func TestFormatTable(t *testing.T) {
	ops := make([]Op, 2)
	ops[0].Record(time.Now())
	out := FormatTable([]string{"read", "write"}, ops)
	assert.Contains(t, out, "read")
	assert.Contains(t, out, "write")
	assert.Contains(t, out, "total")
	assert.Equal(t, 4, len(strings.Split(strings.TrimSpace(out), "\n")), "header + two ops + total")
}

func TestMismatchedTablePanics(t *testing.T) {
	assert.Panics(t, func() {
		FormatTable([]string{"one"}, make([]Op, 2))
	})
}
