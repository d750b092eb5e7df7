// Package partition runs independent engine partitions side by side. Each
// partition has its own world, registries and tick goroutine; nothing is shared
// between them.
package partition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"voxelbend.ai/internal/sim/ability"
	"voxelbend.ai/internal/sim/engine"
	"voxelbend.ai/internal/sim/host"
)

var ErrUnknownPartition = errors.New("unknown partition")

type Manager struct {
	mu sync.RWMutex

	runtimes  map[string]*Runtime
	defaultID string
	logger    *log.Logger

	wg        sync.WaitGroup
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewManager(cfg Config, runtimes map[string]*Runtime, logger *log.Logger) (*Manager, error) {
	if len(runtimes) == 0 {
		return nil, fmt.Errorf("empty runtimes")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, spec := range cfg.Partitions {
		rt := runtimes[spec.ID]
		if rt == nil || rt.Engine == nil {
			return nil, fmt.Errorf("missing runtime for partition %s", spec.ID)
		}
	}
	return &Manager{runtimes: runtimes, defaultID: cfg.DefaultPartitionID, logger: logger}, nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func (m *Manager) PartitionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runtimes))
	for id := range m.runtimes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) Runtime(id string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

func (m *Manager) DefaultID() string { return m.defaultID }

// Route resolves id to a runtime. An empty id is the default partition.
func (m *Manager) Route(id string) (*Runtime, error) {
	if id == "" {
		id = m.defaultID
	}
	rt := m.Runtime(id)
	if rt == nil {
		return nil, fmt.Errorf("partition %q: %w", id, ErrUnknownPartition)
	}
	return rt, nil
}

// Start runs every engine on its own goroutine until ctx is done or Close is
// called.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	for _, id := range m.PartitionIDs() {
		rt := m.Runtime(id)
		m.wg.Add(1)
		go func(id string, e *engine.Engine) {
			defer m.wg.Done()
			err := e.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logf("partition %s stopped: %v", id, err)
			}
		}(id, rt.Engine)
	}
	m.logf("started %d partitions (default %s)", len(m.runtimes), m.defaultID)
}

// Input queues method for user's selected ability in partition id.
func (m *Manager) Input(id string, user host.User, method ability.Activation) error {
	rt, err := m.Route(id)
	if err != nil {
		return err
	}
	return rt.Engine.Input(user, method)
}

// Leave removes user's instances from partition id.
func (m *Manager) Leave(id string, user host.User) error {
	rt, err := m.Route(id)
	if err != nil {
		return err
	}
	return rt.Engine.Leave(user)
}

// Stats returns one entry per partition, ordered by id.
func (m *Manager) Stats() []engine.Stats {
	ids := m.PartitionIDs()
	out := make([]engine.Stats, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.Runtime(id).Engine.Stats())
	}
	return out
}

// Close stops every engine, destroying live instances and reverting their
// mutations, and waits for the tick goroutines to exit.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.RLock()
		cancel := m.cancel
		m.mu.RUnlock()
		for _, id := range m.PartitionIDs() {
			m.Runtime(id).Engine.Close()
		}
		if cancel != nil {
			cancel()
		}
		m.wg.Wait()
	})
}
