package log

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchProgress_CountsStepsAndFailures(t *testing.T) {
	p := NewBatchProgress("test", 4, time.Hour)

	p.Step(true)
	p.Step(false)
	p.Step(true)

	done, failed := p.Snapshot()
	assert.Equal(t, 3, done)
	assert.Equal(t, 1, failed)
}

func TestBatchProgress_ConcurrentSteps(t *testing.T) {
	p := NewBatchProgress("test", 100, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(pass bool) {
			defer wg.Done()
			p.Step(pass)
		}(i%2 == 0)
	}
	wg.Wait()

	done, failed := p.Snapshot()
	assert.Equal(t, 100, done)
	assert.Equal(t, 50, failed)
}

func TestBatchProgress_ZeroIntervalGetsDefault(t *testing.T) {
	p := NewBatchProgress("test", 1, 0)
	assert.Equal(t, 5*time.Second, p.interval)
}
