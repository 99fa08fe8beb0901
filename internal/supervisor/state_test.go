package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		Idle:     "Idle",
		Starting: "Starting",
		Running:  "Running",
		Backoff:  "Backoff",
		GivingUp: "GivingUp",
		Kind(99): "Unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 1*time.Second, BackoffDuration(0))
	assert.Equal(t, 11*time.Second, BackoffDuration(1))
	assert.Equal(t, 21*time.Second, BackoffDuration(2))
	assert.Equal(t, 31*time.Second, BackoffDuration(3))
}

func TestRanLongEnough(t *testing.T) {
	start := time.Now()

	assert.False(t, ranLongEnough(start, start.Add(5*time.Second)))
	assert.True(t, ranLongEnough(start, start.Add(MinHealthyRuntime)))
	assert.True(t, ranLongEnough(start, start.Add(MinHealthyRuntime+time.Second)))
}
