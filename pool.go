package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/objinspect/inspection-service/detections"
)

const (
	// DefaultPoolSize Pool configuration
	DefaultPoolSize   = 4
	AcquireTimeout    = 5 * time.Second
	HealthCheckPeriod = 60 * time.Second
)

// ErrNoEngineAvailable means every engine replica stayed busy for the whole
// acquire window.
var ErrNoEngineAvailable = errors.New("timeout waiting for available engine")

// EngineFactory builds one engine replica. Called at pool construction and
// again by the health checker when replicas are lost.
type EngineFactory func() (detections.Engine, error)

// EnginePool holds independent engine replicas behind a buffered channel.
// A replica is owned by exactly one request between Acquire and Release,
// which is what makes the non-thread-safe engine usable under concurrency.
type EnginePool struct {
	engines        chan detections.Engine
	size           int
	factory        EngineFactory
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	metrics        *PoolMetrics
	lastErrors     []error
}

type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

func NewEnginePool(factory EngineFactory, size int, acquireTimeout time.Duration) (*EnginePool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if acquireTimeout <= 0 {
		acquireTimeout = AcquireTimeout
	}

	pool := &EnginePool{
		engines:        make(chan detections.Engine, size),
		size:           size,
		factory:        factory,
		acquireTimeout: acquireTimeout,
		metrics:        &PoolMetrics{},
	}

	for i := 0; i < size; i++ {
		engine, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize engine %d: %w", i, err)
		}
		pool.engines <- engine
	}

	go pool.healthCheck()

	return pool, nil
}

func (p *EnginePool) Acquire(ctx context.Context) (detections.Engine, error) {
	if p.closed {
		return nil, errors.New("pool is closed")
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	select {
	case engine := <-p.engines:
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return engine, nil
	case <-time.After(p.acquireTimeout):
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrNoEngineAvailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *EnginePool) Release(engine detections.Engine) {
	if p.closed {
		engine.Destroy()
		return
	}

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.engines <- engine
}

func (p *EnginePool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.engines)

	for engine := range p.engines {
		engine.Destroy()
	}
}

func (p *EnginePool) healthCheck() {
	ticker := time.NewTicker(HealthCheckPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if p.closed {
			return
		}

		idle := len(p.engines)
		p.metrics.mu.RLock()
		inUse := p.metrics.inUse
		p.metrics.mu.RUnlock()

		// Replicas currently acquired are not lost, only ones that never
		// came back.
		if missing := p.size - idle - inUse; missing > 0 {
			p.replenishEngines(missing)
		}
	}
}

func (p *EnginePool) replenishEngines(count int) {
	for i := 0; i < count; i++ {
		engine, err := p.factory()
		if err != nil {
			p.recordError(err)
			continue
		}
		p.engines <- engine
	}
}

func (p *EnginePool) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErrors = append(p.lastErrors, err)
	if len(p.lastErrors) > 10 {
		p.lastErrors = p.lastErrors[1:]
	}
}

// MetricsSnapshot is a point-in-time copy of the pool counters.
type MetricsSnapshot struct {
	InUse           int
	TotalAcquired   int64
	TotalReleased   int64
	AcquireFailures int64
	WaitTime        time.Duration
}

func (p *EnginePool) GetMetrics() MetricsSnapshot {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return MetricsSnapshot{
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
