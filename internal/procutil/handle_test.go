package procutil

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandle_Comparable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	h1 := NewHandle(100, now)
	h2 := NewHandle(100, now)
	h3 := NewHandle(200, now)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	m := map[Handle]string{
		h1: "first",
		h3: "second",
	}
	assert.Equal(t, "first", m[h2])
	assert.Equal(t, "second", m[h3])
}

func TestHasExpectedIdentity_ZeroExpectedAlwaysMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, HasExpectedIdentity(1, time.Time{}))
}

func TestHasExpectedIdentity_ToleratesSmallJitter(t *testing.T) {
	t.Parallel()

	pid := int32(os.Getpid())
	actual := IdentityTime(pid)
	assert.True(t, HasExpectedIdentity(pid, actual.Add(IdentityTimeMaxDifference/2)))
}

func TestIsEarlyExit_NilIsNotEarlyExit(t *testing.T) {
	t.Parallel()

	assert.False(t, IsEarlyExit(nil))
}
