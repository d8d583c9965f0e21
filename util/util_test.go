package util

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct {
	stages []int32
}

type stagePass struct {
	stage int
}

func (pass stagePass) Process(c *counter) {
	atomic.AddInt32(&c.stages[pass.stage], 1)
}

func TestProcessRunsStagesInOrder(t *testing.T) {
	c := &counter{stages: make([]int32, 3)}

	Process(
		c,
		[][]Pass[*counter]{
			{stagePass{0}, stagePass{0}},
			{stagePass{1}},
			{stagePass{2}},
		},
		nil)

	assert.Equal(t, []int32{2, 1, 1}, c.stages)
}

func TestProcessEarlyExit(t *testing.T) {
	c := &counter{stages: make([]int32, 3)}

	Process(
		c,
		[][]Pass[*counter]{
			{stagePass{0}},
			{stagePass{1}},
			{stagePass{2}},
		},
		func() bool { return c.stages[1] > 0 })

	assert.Equal(t, []int32{1, 1, 0}, c.stages)
}

func TestParallelProcess(t *testing.T) {
	results := make([]int, 5)
	indices := []int{0, 1, 2, 3, 4}

	ParallelProcess(indices, func(idx int) {
		results[idx] = idx * idx
	})

	assert.Equal(t, []int{0, 1, 4, 9, 16}, results)
}
