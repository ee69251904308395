package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"jlrp/internal/mailer"

	"github.com/rs/zerolog"
)

const deliveryTimeout = 45 * time.Second

// Deliverer renders and sends one job.
type Deliverer interface {
	Deliver(ctx context.Context, job Job) error
}

// Sender delivers jobs through a mail transport.
type Sender struct {
	renderer  *Renderer
	transport mailer.Transport
}

func NewSender(renderer *Renderer, transport mailer.Transport) *Sender {
	return &Sender{renderer: renderer, transport: transport}
}

func (s *Sender) Deliver(ctx context.Context, job Job) error {
	msg, err := s.renderer.Render(job)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s to %s via %s: %w", job.Template, job.To, s.transport.Name(), err)
	}
	return nil
}

// WorkerPool delivers jobs on a fixed set of goroutines. When the buffer is
// full new jobs are dropped and logged rather than blocking the caller.
type WorkerPool struct {
	deliverer Deliverer
	jobs      chan Job
	log       zerolog.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workers goroutines reading from a buffer of size buffer.
func NewWorkerPool(deliverer Deliverer, workers, buffer int, log zerolog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if buffer < workers {
		buffer = workers
	}
	p := &WorkerPool{
		deliverer: deliverer,
		jobs:      make(chan Job, buffer),
		log:       log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		deliver(p.deliverer, job, p.log)
	}
}

func deliver(d Deliverer, job Job, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := d.Deliver(ctx, job); err != nil {
		log.Error().Err(err).Str("template", job.Template).Str("to", job.To).Msg("email delivery failed")
		return
	}
	log.Debug().Str("template", job.Template).Str("to", job.To).Msg("email delivered")
}

func (p *WorkerPool) Dispatch(job Job) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn().Str("template", job.Template).Msg("notification dropped: dispatcher closed")
		return
	}
	select {
	case p.jobs <- job:
	default:
		p.log.Warn().Str("template", job.Template).Str("to", job.To).Msg("notification dropped: queue full")
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Publisher sends a message body to a broker queue.
type Publisher interface {
	Publish(body []byte) error
}

// Consumer streams message bodies from a broker queue.
type Consumer interface {
	Consume(ctx context.Context, handler func(body []byte) error) error
}

// QueueDispatcher hands jobs to a message broker; a consumer started with
// ConsumeJobs delivers them.
type QueueDispatcher struct {
	pub Publisher
	log zerolog.Logger
}

func NewQueueDispatcher(pub Publisher, log zerolog.Logger) *QueueDispatcher {
	return &QueueDispatcher{pub: pub, log: log}
}

func (d *QueueDispatcher) Dispatch(job Job) {
	body, err := json.Marshal(job)
	if err != nil {
		d.log.Error().Err(err).Str("template", job.Template).Msg("failed to encode notification")
		return
	}
	if err := d.pub.Publish(body); err != nil {
		d.log.Error().Err(err).Str("template", job.Template).Msg("failed to enqueue notification")
	}
}

// ConsumeJobs decodes queued jobs and delivers them until ctx is done.
// Undecodable messages and delivery failures are logged and dropped.
func ConsumeJobs(ctx context.Context, c Consumer, d Deliverer, log zerolog.Logger) error {
	return c.Consume(ctx, func(body []byte) error {
		var job Job
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		deliver(d, job, log)
		return nil
	})
}
