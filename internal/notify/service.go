package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	logx "sentinela/pkg/logx"

	"golang.org/x/time/rate"
)

type Config struct {
	RatePerSec int           // default 3
	QueueSize  int           // default 64
	AutoClear  time.Duration // default 30s; 0 disables retirement
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.AutoClear == 0 {
		c.AutoClear = 30 * time.Second
	}
	return c
}

type item struct {
	n Notification
	// order enables the minimal fallback when the primary send fails.
	order string
}

// Service is the async notification pipeline. One worker drains the queue
// under a rate limit and keeps a registry of recently shown notification ids.
type Service struct {
	cfg     Config
	sender  Sender
	log     logx.Logger
	queue   chan item
	limiter *rate.Limiter

	mu     sync.Mutex
	active map[string]*time.Timer
}

func NewService(cfg Config, sender Sender, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		log:     log,
		queue:   make(chan item, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		active:  map[string]*time.Timer{},
	}
}

// NotifyOrder enqueues the primary new-sale alert for order.
func (s *Service) NotifyOrder(order string) {
	s.enqueue(item{n: OrderNotification(order), order: order})
}

// Notify enqueues an arbitrary notification without fallback.
func (s *Service) Notify(n Notification) {
	s.enqueue(item{n: n})
}

func (s *Service) enqueue(it item) {
	select {
	case s.queue <- it:
	default:
		s.log.Warn("notification dropped (queue full)",
			logx.String("id", it.n.ID),
			logx.Int("queue_cap", cap(s.queue)))
	}
}

// Active returns the ids of notifications shown within the auto-clear window.
func (s *Service) Active() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Run drains the queue until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer s.retireAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
			s.deliver(it)
		}
	}
}

func (s *Service) deliver(it item) {
	err := s.sender.Send(it.n)
	if err == nil {
		s.register(it.n.ID)
		s.log.Info("notification shown", logx.String("id", it.n.ID), logx.String("title", it.n.Title))
		return
	}

	s.log.Warn("notification failed", logx.String("id", it.n.ID), logx.Any("err", err))
	if it.order == "" {
		return
	}
	fb := fallbackNotification(it.order)
	if err := s.sender.Send(fb); err != nil {
		s.log.Error("fallback notification failed", logx.String("order", it.order), logx.Any("err", err))
		return
	}
	s.register(fb.ID)
}

func (s *Service) register(id string) {
	if id == "" || s.cfg.AutoClear <= 0 {
		return
	}
	s.mu.Lock()
	if t, ok := s.active[id]; ok {
		t.Stop()
	}
	s.active[id] = time.AfterFunc(s.cfg.AutoClear, func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	})
	s.mu.Unlock()
}

func (s *Service) retireAll() {
	s.mu.Lock()
	for id, t := range s.active {
		t.Stop()
		delete(s.active, id)
	}
	s.mu.Unlock()
}
