package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadyGateRunsImmediatelyWhenIdle(t *testing.T) {
	var g ReadyGate
	ran := false
	g.WhenReady(func() { ran = true })
	assert.True(t, ran)
}

func TestReadyGateWaitsForPending(t *testing.T) {
	var g ReadyGate
	g.Add(2)
	var order []int
	g.WhenReady(func() { order = append(order, 1) })
	g.WhenReady(func() { order = append(order, 2) })

	g.Done()
	assert.Empty(t, order)
	assert.Equal(t, 1, g.Pending())

	g.Done()
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 0, g.Pending())

	// extra Done calls are ignored
	g.Done()
	assert.Equal(t, []int{1, 2}, order)
}

func TestReadyGateReset(t *testing.T) {
	var g ReadyGate
	g.Add(1)
	ran := false
	g.WhenReady(func() { ran = true })
	g.Reset()
	g.Done()
	assert.False(t, ran)
	assert.Equal(t, 0, g.Pending())
}
