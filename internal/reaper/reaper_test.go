package reaper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTaskRunsSweepPeriodically(t *testing.T) {
	var runs atomic.Int32
	task := NewTask("test", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 1, nil
	}, zap.NewNop())

	task.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	task.Stop()
}

func TestTaskStopWaitsForInflightSweep(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool

	task := NewTask("test", 5*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return 0, nil
	}, zap.NewNop())

	task.Start(context.Background())
	<-entered
	task.Stop()

	assert.True(t, finished.Load(), "stop must wait for the in-flight sweep")
}

func TestTaskSurvivesSweepErrors(t *testing.T) {
	var runs atomic.Int32
	task := NewTask("test", 5*time.Millisecond, func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 0, errors.New("boom")
	}, zap.NewNop())

	task.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	task.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	task := NewTask("test", time.Minute, func(ctx context.Context) (int, error) { return 0, nil }, zap.NewNop())
	task.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	task := NewTask("test", time.Minute, func(ctx context.Context) (int, error) { return 0, nil }, zap.NewNop())
	task.Start(context.Background())
	task.Stop()
	task.Stop()
}
