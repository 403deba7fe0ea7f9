// Package watcher drives the per-page scan loop: it installs a mutation
// observer in the page, debounces its callbacks, rescans on a periodic
// fallback schedule, and applies the visual feedback after each scan.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sentinela/internal/browser"
	"sentinela/internal/protocol"
	"sentinela/internal/scan"
	logx "sentinela/pkg/logx"

	"github.com/bep/debounce"
	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"
)

const mutationBinding = "__sentinelaMutation"

// Sink receives the protocol messages a watcher produces.
type Sink interface {
	OrderFound(msg protocol.OrderFound)
	SizeAlert(msg protocol.SizeAlert)
}

type Options struct {
	Debounce       time.Duration // default 500ms
	RescanInterval time.Duration // default 5s
	Highlight      bool
	Banner         bool
	Sound          bool
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.RescanInterval <= 0 {
		o.RescanInterval = 5 * time.Second
	}
	return o
}

// Watcher owns the scan loop for one attached page. All scans run on the Run
// goroutine, so a slow evaluation can never overlap the next one.
type Watcher struct {
	page *browser.Page
	opts Options
	sink Sink
	log  logx.Logger

	monitoring atomic.Bool
	kick       chan struct{}
	alerts     chan string

	mu       sync.Mutex
	lastText string
}

func New(page *browser.Page, opts Options, sink Sink, monitoring bool, log logx.Logger) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watcher{
		page:   page,
		opts:   opts.withDefaults(),
		sink:   sink,
		log:    log.With(logx.Int("tab_id", page.TabID())),
		kick:   make(chan struct{}, 1),
		alerts: make(chan string, 8),
	}
	w.monitoring.Store(monitoring)
	return w
}

func (w *Watcher) TabID() int { return w.page.TabID() }

// SetMonitoring flips the loop on or off. Turning it off clears the in-page
// marks and forgets the last seen text, so re-enabling starts from scratch.
func (w *Watcher) SetMonitoring(on bool) {
	was := w.monitoring.Swap(on)
	if was == on {
		return
	}
	if !on {
		w.mu.Lock()
		w.lastText = ""
		w.mu.Unlock()
	}
	// Either way the loop must act: rescan when enabling, clear the page
	// marks when disabling.
	w.requestScan()
}

// PlayAlert queues the audible alert and in-page toast for order.
func (w *Watcher) PlayAlert(order string) {
	select {
	case w.alerts <- order:
	default:
	}
}

func (w *Watcher) requestScan() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is canceled or the page session drops, in
// which case it returns an error so the manager can detach the tab.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.page.AddBinding(ctx, mutationBinding); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	mutations, err := w.page.BindingCalls(ctx, mutationBinding)
	if err != nil {
		return fmt.Errorf("binding stream: %w", err)
	}
	loads, err := w.page.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("load stream: %w", err)
	}
	if err := w.page.Exec(ctx, observerScript(mutationBinding)); err != nil {
		return fmt.Errorf("install observer: %w", err)
	}

	// Periodic fallback rescan for pages that mutate without observer
	// callbacks (canvas redraws, same-text reflows).
	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", w.opts.RescanInterval), w.requestScan); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	debounced := debounce.New(w.opts.Debounce)

	w.log.Info("watcher started", logx.String("url", w.page.URL()))
	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			w.teardown()
			return nil
		case _, ok := <-mutations:
			if !ok {
				return fmt.Errorf("mutation stream closed")
			}
			debounced(w.requestScan)
		case _, ok := <-loads:
			if !ok {
				return fmt.Errorf("load stream closed")
			}
			// A fresh document lost the observer; reinstall and rescan.
			if err := w.page.Exec(ctx, observerScript(mutationBinding)); err != nil {
				return fmt.Errorf("reinstall observer: %w", err)
			}
			w.mu.Lock()
			w.lastText = ""
			w.mu.Unlock()
			w.requestScan()
		case <-w.kick:
			w.scan(ctx)
		case order := <-w.alerts:
			if err := w.page.Exec(ctx, alertScript(order, w.opts.Sound)); err != nil {
				w.log.Warn("in-page alert failed", logx.Any("err", err))
			}
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	if !w.monitoring.Load() {
		if err := w.page.Exec(ctx, unhighlightScript()); err != nil {
			w.log.Debug("unhighlight failed", logx.Any("err", err))
		}
		return
	}

	// The stop path tears the observer down; installation is idempotent, so
	// this is a no-op on every other scan.
	if err := w.page.Exec(ctx, observerScript(mutationBinding)); err != nil {
		w.log.Debug("observer install failed", logx.Any("err", err))
	}

	v, err := w.page.Eval(ctx, snapshotScript())
	if err != nil {
		w.log.Warn("snapshot failed", logx.Any("err", err))
		return
	}

	snap := scan.Snapshot{
		TabID:         w.page.TabID(),
		URL:           v.Get("url").String(),
		FullText:      v.Get("fullText").String(),
		SelectorTexts: gatherStrings(v, "selectorTexts"),
		Quantities:    gatherStrings(v, "quantities"),
		Sublabels:     gatherStrings(v, "sublabels"),
		Titles:        gatherStrings(v, "titles"),
		Descriptions:  gatherStrings(v, "descriptions"),
		Buttons:       gatherStrings(v, "buttons"),
	}

	w.mu.Lock()
	last := w.lastText
	w.lastText = snap.FullText
	w.mu.Unlock()

	res := scan.Run(snap, last)

	for _, d := range res.Detections {
		w.sink.OrderFound(protocol.OrderFound{
			OrderNumber: d.Order,
			ElementHash: d.Fingerprint,
			TabID:       snap.TabID,
		})
	}
	for _, s := range res.SizeAlerts {
		w.sink.SizeAlert(protocol.SizeAlert{
			Message:    s.Message,
			FemaleSize: s.Female,
			MaleSize:   s.Male,
			TabID:      snap.TabID,
		})
	}

	if cases := scan.BannerCases(res.Cases); len(cases) > 0 {
		w.log.Debug("conditions present", logx.Any("cases", cases))
	}

	if w.opts.Highlight || w.opts.Banner {
		if err := w.page.Exec(ctx, highlightScript(w.opts.Highlight, w.opts.Banner)); err != nil {
			w.log.Debug("highlight failed", logx.Any("err", err))
		}
	}
}

// teardown clears in-page state on a clean stop. Best effort with a short
// deadline since the browser may already be gone.
func (w *Watcher) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = w.page.Exec(ctx, unhighlightScript())
}

func gatherStrings(v gjson.Result, key string) []string {
	arr := v.Get(key).Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, r := range arr {
		out = append(out, r.String())
	}
	return out
}
