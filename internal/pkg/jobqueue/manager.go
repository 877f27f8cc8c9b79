package jobqueue

import (
	"context"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/invobr/paysync/internal/pkg/env"
	"github.com/invobr/paysync/internal/pkg/idempotency"
	"github.com/invobr/paysync/internal/pkg/reconcile"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton). Attach must
// be called with the engine before Start.
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// Attach creates the queue with its processor. Worker count comes from
// JOB_QUEUE_WORKERS (default 5).
func (m *Manager) Attach(engine *reconcile.Engine, idem idempotency.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()

	workers := 5
	if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "5")); err == nil && v > 0 {
		workers = v
	}
	m.queue = NewQueue(workers, NewReconcileProcessor(engine, idem))
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.queue == nil {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped")
}

// EnqueueReconcile hands a resolved webhook event to the queue. Satisfies
// the ingest path's enqueuer dependency.
func (m *Manager) EnqueueReconcile(ctx context.Context, ev reconcile.Event) error {
	_ = ctx
	_, err := m.queue.EnqueueJob(JobTypeReconcileWebhook, PayloadForEvent(ev).ToMap())
	return err
}
