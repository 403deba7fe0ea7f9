package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"sentinela/internal/browser"
	"sentinela/internal/runtime/supervisor"
	logx "sentinela/pkg/logx"
)

type ManagerOptions struct {
	// URLFilters limits which pages get a watcher: a page qualifies when its
	// URL contains any filter substring. Empty watches everything.
	URLFilters []string

	// AttachInterval is how often the target list is re-polled. Default 2s.
	AttachInterval time.Duration

	// RequestToggle, when set, is called if a page attaches while monitoring
	// is off. The historical behavior is to turn monitoring back on whenever
	// a fresh page appears.
	RequestToggle func()

	Watcher Options
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.AttachInterval <= 0 {
		o.AttachInterval = 2 * time.Second
	}
	return o
}

type session struct {
	watcher *Watcher
	page    *browser.Page
	cancel  context.CancelFunc
}

// Manager discovers browser pages and runs one Watcher per qualifying page.
// Tab ids are assigned on attach and never reused within a process.
type Manager struct {
	client *browser.Client
	opts   ManagerOptions
	sink   Sink
	sup    *supervisor.Supervisor
	log    logx.Logger

	mu         sync.Mutex
	sessions   map[string]*session // keyed by target id
	nextTabID  int
	monitoring bool
}

func NewManager(client *browser.Client, opts ManagerOptions, sink Sink, sup *supervisor.Supervisor, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		client:     client,
		opts:       opts.withDefaults(),
		sink:       sink,
		sup:        sup,
		log:        log,
		sessions:   map[string]*session{},
		nextTabID:  1,
		monitoring: true,
	}
}

// SetMonitoring propagates the flag to current and future watchers.
func (m *Manager) SetMonitoring(on bool) {
	m.mu.Lock()
	m.monitoring = on
	watchers := make([]*Watcher, 0, len(m.sessions))
	for _, s := range m.sessions {
		watchers = append(watchers, s.watcher)
	}
	m.mu.Unlock()
	for _, w := range watchers {
		w.SetMonitoring(on)
	}
}

// PlayAlert routes the in-page alert to the tab that reported the order.
func (m *Manager) PlayAlert(tabID int, order string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.watcher.TabID() == tabID {
			s.watcher.PlayAlert(order)
			return
		}
	}
	m.log.Debug("alert for unknown tab", logx.Int("tab_id", tabID))
}

// TabCount reports how many pages currently have a watcher.
func (m *Manager) TabCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run polls the browser's target list, attaching new pages and reaping
// watchers whose target disappeared, until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.AttachInterval)
	defer ticker.Stop()
	defer m.detachAll()

	m.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sync(ctx)
		}
	}
}

func (m *Manager) sync(ctx context.Context) {
	targets, err := m.client.ListPages(ctx)
	if err != nil {
		m.log.Warn("target list failed", logx.Any("err", err))
		return
	}

	alive := make(map[string]bool, len(targets))
	for _, t := range targets {
		alive[t.ID] = true
		if !m.wants(t.URL) {
			continue
		}
		m.mu.Lock()
		_, have := m.sessions[t.ID]
		m.mu.Unlock()
		if !have {
			m.attach(ctx, t)
		}
	}

	// Reap sessions whose target is gone.
	m.mu.Lock()
	var gone []*session
	for id, s := range m.sessions {
		if !alive[id] {
			gone = append(gone, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range gone {
		m.log.Info("page closed", logx.Int("tab_id", s.watcher.TabID()))
		s.cancel()
		_ = s.page.Close()
	}
}

func (m *Manager) wants(url string) bool {
	if len(m.opts.URLFilters) == 0 {
		return true
	}
	for _, f := range m.opts.URLFilters {
		if f != "" && strings.Contains(url, f) {
			return true
		}
	}
	return false
}

func (m *Manager) attach(ctx context.Context, t browser.Target) {
	m.mu.Lock()
	tabID := m.nextTabID
	m.nextTabID++
	monitoring := m.monitoring
	if !monitoring && m.opts.RequestToggle != nil {
		// A new page re-enables monitoring. Flip the local flag now so two
		// pages attaching in one sync request a single toggle; the broadcast
		// that follows settles every watcher.
		m.monitoring = true
		monitoring = true
		go m.opts.RequestToggle()
	}
	m.mu.Unlock()

	page, err := m.client.Attach(ctx, t, tabID)
	if err != nil {
		m.log.Warn("attach failed", logx.String("url", t.URL), logx.Any("err", err))
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	w := New(page, m.opts.Watcher, m.sink, monitoring, m.log)
	s := &session{watcher: w, page: page, cancel: cancel}

	m.mu.Lock()
	m.sessions[t.ID] = s
	m.mu.Unlock()

	m.sup.Go0("watcher.tab", func(context.Context) {
		if err := w.Run(wctx); err != nil {
			m.log.Warn("watcher stopped", logx.Int("tab_id", tabID), logx.Any("err", err))
		}
		// Drop the session so the next sync can re-attach if the page is
		// still there.
		m.mu.Lock()
		if cur, ok := m.sessions[t.ID]; ok && cur == s {
			delete(m.sessions, t.ID)
		}
		m.mu.Unlock()
		cancel()
		_ = page.Close()
	})
}

func (m *Manager) detachAll() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.cancel()
		_ = s.page.Close()
	}
}
