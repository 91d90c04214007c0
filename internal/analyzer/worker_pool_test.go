package analyzer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewWorkerPool_Workers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 3, 3},
		{"zero uses cpu count", 0, runtime.NumCPU()},
		{"negative uses cpu count", -2, runtime.NumCPU()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			if pool.workers != tt.want {
				t.Errorf("workers = %d, want %d", pool.workers, tt.want)
			}
			if cap(pool.jobQueue) != tt.want*2 {
				t.Errorf("queue capacity = %d, want %d", cap(pool.jobQueue), tt.want*2)
			}
		})
	}
}

// Each analysis run tracks its own jobs; the pool is shared between runs.
func TestWorkerPool_PerRunWaitGroups(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	const runs, jobsPerRun = 4, 3
	var done atomic.Int64
	var runners sync.WaitGroup
	for r := 0; r < runs; r++ {
		runners.Add(1)
		go func() {
			defer runners.Done()
			var run sync.WaitGroup
			for j := 0; j < jobsPerRun; j++ {
				run.Add(1)
				job := func() {
					defer run.Done()
					done.Add(1)
				}
				if !pool.Submit(job) {
					job()
				}
			}
			run.Wait()
		}()
	}
	runners.Wait()

	if got := done.Load(); got != runs*jobsPerRun {
		t.Errorf("Expected %d jobs to run, got %d", runs*jobsPerRun, got)
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	for i := 0; i < 6; i++ {
		if !pool.Submit(func() {}) {
			t.Fatal("Expected Submit to accept jobs on an open pool")
		}
	}
	pool.Wait()

	stats := pool.GetStats()
	if stats.TotalJobs != 6 || stats.CompletedJobs != 6 {
		t.Errorf("Expected 6 submitted and completed jobs, got %+v", stats)
	}
	if stats.ActiveWorkers != 0 {
		t.Errorf("Expected idle pool, got %d active workers", stats.ActiveWorkers)
	}
}

func TestWorkerPool_StartTwice(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Start()
	defer pool.Close()

	ran := make(chan struct{})
	pool.Submit(func() { close(ran) })
	<-ran
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()

	var ran atomic.Bool
	pool.Submit(func() { ran.Store(true) })
	pool.Close()
	pool.Close()
	pool.Wait()

	if !ran.Load() {
		t.Error("Expected jobs queued before Close to run")
	}
	if pool.Submit(func() {}) {
		t.Error("Expected Submit to fail on a closed pool")
	}
	if stats := pool.GetStats(); stats.TotalJobs != 1 {
		t.Errorf("Expected rejected jobs to be left out of the count, got %d", stats.TotalJobs)
	}
}
