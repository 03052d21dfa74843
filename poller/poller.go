// Package poller repeatedly checks a payment's status until it is verified,
// the payment window closes, or the caller stops it.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	QRISInterval    = 5 * time.Second
	DefaultInterval = 10 * time.Second
)

var (
	ErrEmptyID        = errors.New("poller: empty id")
	ErrAlreadyStarted = errors.New("poller: already started")
)

type Outcome int

const (
	Running Outcome = iota
	Verified
	Expired
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Verified:
		return "verified"
	case Expired:
		return "expired"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Status is what one check observed.
type Status struct {
	OrderStatus       string `json:"order_status,omitempty"`
	PaymentStatus     string `json:"payment_status,omitempty"`
	TransactionStatus string `json:"transaction_status,omitempty"`
}

// Verified is the only terminal condition. Nothing a client reports
// locally can make it true.
func (s Status) Verified() bool {
	return s.PaymentStatus == "verified" || s.TransactionStatus == "completed"
}

type Checker func(ctx context.Context, id string) (Status, error)

type Config struct {
	Interval time.Duration
	// Deadline ends polling. At the deadline one last check runs; a
	// verified result still wins. Zero means no deadline.
	Deadline time.Time
	Logger   logrus.FieldLogger
}

type Poller struct {
	id         string
	cfg        Config
	check      Checker
	onVerified func(Status)
	onExpired  func()

	mu      sync.Mutex
	started bool
	outcome Outcome
	cancel  context.CancelFunc
	done    chan struct{}
	checks  atomic.Int64
}

// New builds a poller. onVerified and onExpired may be nil; each runs at
// most once, after the ticker has been stopped.
func New(id string, cfg Config, check Checker, onVerified func(Status), onExpired func()) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Poller{
		id:         id,
		cfg:        cfg,
		check:      check,
		onVerified: onVerified,
		onExpired:  onExpired,
		done:       make(chan struct{}),
	}
}

// Start checks once immediately and then every interval in a goroutine.
func (p *Poller) Start(ctx context.Context) error {
	if p.id == "" {
		return ErrEmptyID
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
	return nil
}

// Stop cancels polling. Safe to call more than once, before Start, or
// after the poller finished on its own.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	started := p.started
	if !started {
		p.started = true
		p.outcome = Stopped
		close(p.done)
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed when polling has ended for any reason.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// Checks returns how many status checks have run.
func (p *Poller) Checks() int {
	return int(p.checks.Load())
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	outcome, status := p.loop(ctx)

	p.mu.Lock()
	p.outcome = outcome
	p.mu.Unlock()

	switch outcome {
	case Verified:
		if p.onVerified != nil {
			p.onVerified(status)
		}
	case Expired:
		if p.onExpired != nil {
			p.onExpired()
		}
	}
}

func (p *Poller) loop(ctx context.Context) (Outcome, Status) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if !p.cfg.Deadline.IsZero() {
		timer := time.NewTimer(time.Until(p.cfg.Deadline))
		defer timer.Stop()
		deadline = timer.C
	}

	if s, ok := p.tick(ctx); ok {
		return Verified, s
	}

	for {
		select {
		case <-ctx.Done():
			return Stopped, Status{}
		case <-ticker.C:
			if s, ok := p.tick(ctx); ok {
				return Verified, s
			}
		case <-deadline:
			if s, ok := p.tick(ctx); ok {
				return Verified, s
			}
			return Expired, Status{}
		}
	}
}

func (p *Poller) tick(ctx context.Context) (Status, bool) {
	if ctx.Err() != nil {
		return Status{}, false
	}

	status, err := p.check(ctx, p.id)
	p.checks.Add(1)
	if err != nil {
		if ctx.Err() == nil {
			p.cfg.Logger.WithError(err).WithField("id", p.id).Warn("status check failed, retrying next tick")
		}
		return Status{}, false
	}
	return status, status.Verified()
}
