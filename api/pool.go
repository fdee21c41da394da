package api

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/domain"
)

type enqueueJob struct {
	userID string
	cmds   []domain.Command
	added  []string // keys added to deduper (for rollback on enqueue failure)
}

const (
	minEnqueueWorkers   = 32
	maxEnqueueWorkers   = 192
	workersPerQueueSlot = 4
	workersPerCPU       = 24
	jobsPerWorker       = 128
)

var (
	once           sync.Once
	jobs           chan enqueueJob
	workerCount    int
	jobBuf         int
	enqueueTimeout time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	globalStore    Storage
	globalDeduper  Deduper
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownCommandSender stops worker goroutines and clears shared state. It is intended for tests.
func shutdownCommandSender() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalStore = nil
	globalDeduper = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	enqueueTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

// computeWorkerDefaults sizes the worker pool from the storage queue
// concurrency and the host CPU count.
func computeWorkerDefaults(queueConcurrency, cpu int) (workers, buffer int) {
	workers = queueConcurrency * workersPerQueueSlot
	if byCPU := cpu * workersPerCPU; byCPU > workers {
		workers = byCPU
	}
	if workers < minEnqueueWorkers {
		workers = minEnqueueWorkers
	}
	if workers > maxEnqueueWorkers {
		workers = maxEnqueueWorkers
	}
	return workers, workers * jobsPerWorker
}

func initCommandSender(store Storage, deduper Deduper, log *log.Logger) {
	once.Do(func() {
		globalStore = store
		globalDeduper = deduper
		if log == nil {
			panic("Logger is not initialized")
		}
		globalLog = log

		queueConcurrency := 0
		if qc, ok := store.(interface{ QueueConcurrency() int }); ok {
			queueConcurrency = qc.QueueConcurrency()
		}
		defWorkers, defBuf := computeWorkerDefaults(queueConcurrency, runtime.NumCPU())

		workerCount = envInt("ENQUEUE_WORKERS", defWorkers)
		jobBuf = envInt("ENQUEUE_BUFFER", defBuf)
		enqueueTimeout = envDur("ENQUEUE_TIMEOUT", 60*time.Second)
		handoffTimeout = envDur("ENQUEUE_HANDOFF_TIMEOUT", 15*time.Millisecond)

		jobs = make(chan enqueueJob, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go worker(i, jobs)
		}
		globalLog.Infof("command sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, enqueueTimeout, handoffTimeout)
	})
}

func worker(id int, jobCh <-chan enqueueJob) {
	defer workerWG.Done()
	for j := range jobCh {
		ctx, cancel := context.WithTimeout(bg, enqueueTimeout)
		err := globalStore.EnqueueCommands(ctx, j.userID, j.cmds)
		cancel()

		if err != nil {
			if globalDeduper != nil {
				for _, k := range j.added {
					if rerr := globalDeduper.Remove(bg, j.userID, k); rerr != nil {
						globalLog.Errorf("dedupe rollback failed, err : %v, key: %s, user: %s", rerr, k, j.userID)
					}
				}
			}
			globalLog.Errorf("enqueue failed, err: %v, user: %s, count: %d, worker: %d", err, j.userID, len(j.cmds), id)
		}
	}
}

func tryEnqueueJob(job enqueueJob) bool {
	if jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan enqueueJob, job enqueueJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan enqueueJob, job enqueueJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDur(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}
