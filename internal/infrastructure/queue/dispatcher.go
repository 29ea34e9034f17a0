package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ree-portal/agent-onboarding/internal/core/domain"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

type job struct {
	kind string
	key  string
	run  func(ctx context.Context, pub ports.LifecyclePublisher) error
}

// Dispatcher hands lifecycle events to a fixed set of workers, sharded by
// agent id so events of one agent are published in order. It implements
// ports.LifecyclePublisher and returns as soon as the event is queued.
type Dispatcher struct {
	workers []chan job
	target  ports.LifecyclePublisher
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, target ports.LifecyclePublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		target:  target,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches the workers. They drain their queues and exit once Stop is
// called, or return early when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Stop closes the queues and waits for the workers to finish.
func (d *Dispatcher) Stop() {
	for _, ch := range d.workers {
		close(ch)
	}
	d.wg.Wait()
}

func (d *Dispatcher) AgentRegistered(_ context.Context, p *domain.Profile, email string) error {
	profile := *p
	d.enqueue(job{kind: "agent.registered", key: p.ID, run: func(ctx context.Context, pub ports.LifecyclePublisher) error {
		return pub.AgentRegistered(ctx, &profile, email)
	}})
	return nil
}

func (d *Dispatcher) AgentStatusChanged(_ context.Context, agentID string, from, to domain.Status, actorID string) error {
	d.enqueue(job{kind: "agent.status_changed", key: agentID, run: func(ctx context.Context, pub ports.LifecyclePublisher) error {
		return pub.AgentStatusChanged(ctx, agentID, from, to, actorID)
	}})
	return nil
}

func (d *Dispatcher) enqueue(j job) {
	d.workers[d.shardIndex(j.key)] <- j
}

// shardIndex maps an agent id deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-ch:
			if !ok {
				return
			}
			if err := j.run(ctx, d.target); err != nil {
				d.log.Error().Err(err).
					Str("event", j.kind).
					Str("agent_id", j.key).
					Int("worker_id", id).
					Msg("lifecycle event publish failed")
			}
		}
	}
}
