package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_AdaptivePoll_BacksOffTowardSteady(t *testing.T) {
	p := NewAdaptivePoll(time.Millisecond, 4*time.Millisecond)
	assert.Equal(t, time.Millisecond, p.Cur)

	p.Sleep()
	assert.Equal(t, 2*time.Millisecond, p.Cur)

	p.Sleep()
	assert.Equal(t, 4*time.Millisecond, p.Cur)

	p.Sleep()
	assert.Equal(t, 4*time.Millisecond, p.Cur, "must not exceed Steady")
}

func Test_AdaptivePoll_SteadyBelowFastIsFloored(t *testing.T) {
	p := NewAdaptivePoll(10*time.Millisecond, time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, p.Steady)
}

func Test_AdaptivePoll_ZeroFastUsesDefault(t *testing.T) {
	p := NewAdaptivePoll(0, 0)
	assert.Equal(t, pollInterval, p.Cur)
}
