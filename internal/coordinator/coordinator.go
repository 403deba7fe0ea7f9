// Package coordinator owns the monitoring state: the global flag, the
// durable set of already-notified orders, and the session-scoped dedup keys.
//
// All state lives on a single actor goroutine; watchers and control surfaces
// talk to it through messages, so no operation ever observes a half-applied
// update.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"sentinela/internal/eventbus"
	"sentinela/internal/protocol"
	"sentinela/internal/storage"
	logx "sentinela/pkg/logx"
)

// ErrStopped reports that the coordinator loop is no longer running.
var ErrStopped = errors.New("coordinator stopped")

// Notifier is the desktop notification hook.
type Notifier interface {
	NotifyOrder(order string)
}

type Coordinator struct {
	bus      eventbus.Bus
	store    storage.Store // nil when persistence is disabled
	notifier Notifier
	log      logx.Logger

	inbox chan any
	done  chan struct{}
}

// Loop-owned state. Only the Run goroutine touches these.
type state struct {
	monitoring bool
	orders     []string            // notified orders, first-seen order
	notified   map[string]struct{} // same orders, for membership checks
	processed  map[string]struct{} // session keys: "<tab>-<hash>-<order>"
}

type orderFoundCmd struct{ msg protocol.OrderFound }
type sizeAlertCmd struct{ msg protocol.SizeAlert }
type statusCmd struct{ reply chan protocol.Status }
type toggleCmd struct{ reply chan bool }
type logCmd struct{ reply chan []string }
type clearCmd struct{ reply chan struct{} }

func New(bus eventbus.Bus, store storage.Store, notifier Notifier, log logx.Logger) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{
		bus:      bus,
		store:    store,
		notifier: notifier,
		log:      log,
		inbox:    make(chan any, 128),
		done:     make(chan struct{}),
	}
}

// OrderFound ingests a detection. Fire-and-forget: when the inbox is full the
// message is dropped and the next rescan will resubmit it.
func (c *Coordinator) OrderFound(msg protocol.OrderFound) {
	select {
	case c.inbox <- orderFoundCmd{msg}:
	default:
		c.log.Warn("detection dropped (inbox full)", logx.String("order", msg.OrderNumber))
	}
}

// SizeAlert ingests the informational size-comparison alert.
func (c *Coordinator) SizeAlert(msg protocol.SizeAlert) {
	select {
	case c.inbox <- sizeAlertCmd{msg}:
	default:
	}
}

// Status returns the monitoring flag and notified-order count.
func (c *Coordinator) Status(ctx context.Context) (protocol.Status, error) {
	cmd := statusCmd{reply: make(chan protocol.Status, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return protocol.Status{}, err
	}
	select {
	case s := <-cmd.reply:
		return s, nil
	case <-ctx.Done():
		return protocol.Status{}, ctx.Err()
	case <-c.done:
		return protocol.Status{}, ErrStopped
	}
}

// Toggle flips the monitoring flag and returns the new value. The session
// dedup keys are reset and the change is broadcast to every tab.
func (c *Coordinator) Toggle(ctx context.Context) (bool, error) {
	cmd := toggleCmd{reply: make(chan bool, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return false, err
	}
	select {
	case on := <-cmd.reply:
		return on, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.done:
		return false, ErrStopped
	}
}

// Log returns the notified orders in first-seen order.
func (c *Coordinator) Log(ctx context.Context) ([]string, error) {
	cmd := logCmd{reply: make(chan []string, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case orders := <-cmd.reply:
		return orders, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

// Clear empties the notified-order set and the session dedup keys. The
// monitoring flag is untouched.
func (c *Coordinator) Clear(ctx context.Context) error {
	cmd := clearCmd{reply: make(chan struct{}, 1)}
	if err := c.send(ctx, cmd); err != nil {
		return err
	}
	select {
	case <-cmd.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

func (c *Coordinator) send(ctx context.Context, cmd any) error {
	select {
	case c.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Run restores persisted state and serves the actor loop until ctx is
// canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	st := &state{
		monitoring: true,
		notified:   map[string]struct{}{},
		processed:  map[string]struct{}{},
	}

	if c.store != nil {
		monitoring, saved, orders, err := c.store.LoadState(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if saved {
			st.monitoring = monitoring
		}
		for _, o := range orders {
			if _, ok := st.notified[o]; ok {
				continue
			}
			st.notified[o] = struct{}{}
			st.orders = append(st.orders, o)
		}
		// Write the effective flag back so a fresh store starts saved.
		if err := c.store.SetMonitoring(ctx, st.monitoring); err != nil {
			c.log.Warn("persist monitoring flag failed", logx.Any("err", err))
		}
	}

	c.log.Info("coordinator started",
		logx.Bool("monitoring", st.monitoring),
		logx.Int("notified_orders", len(st.orders)))
	c.broadcastStatus(st.monitoring)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw := <-c.inbox:
			switch cmd := raw.(type) {
			case orderFoundCmd:
				c.handleOrderFound(ctx, st, cmd.msg)
			case sizeAlertCmd:
				// Informational channel: logged and republished for mirrors,
				// never deduped or persisted.
				c.log.Info("size alert",
					logx.String("message", cmd.msg.Message),
					logx.Int("tab_id", cmd.msg.TabID))
				c.bus.Publish(eventbus.Event{
					Type: protocol.ActionSizeAlert,
					Data: cmd.msg,
				})
			case statusCmd:
				cmd.reply <- protocol.Status{
					IsMonitoring:        st.monitoring,
					NotifiedOrdersCount: len(st.orders),
				}
			case toggleCmd:
				st.monitoring = !st.monitoring
				st.processed = map[string]struct{}{}
				if c.store != nil {
					if err := c.store.SetMonitoring(ctx, st.monitoring); err != nil {
						c.log.Warn("persist monitoring flag failed", logx.Any("err", err))
					}
				}
				c.log.Info("monitoring toggled", logx.Bool("monitoring", st.monitoring))
				c.broadcastStatus(st.monitoring)
				cmd.reply <- st.monitoring
			case logCmd:
				cmd.reply <- append([]string(nil), st.orders...)
			case clearCmd:
				st.orders = nil
				st.notified = map[string]struct{}{}
				st.processed = map[string]struct{}{}
				if c.store != nil {
					if err := c.store.ClearOrders(ctx); err != nil {
						c.log.Warn("clear orders failed", logx.Any("err", err))
					}
				}
				c.log.Info("order log cleared")
				cmd.reply <- struct{}{}
			}
		}
	}
}

func (c *Coordinator) handleOrderFound(ctx context.Context, st *state, msg protocol.OrderFound) {
	if !st.monitoring {
		return
	}

	key := fmt.Sprintf("%d-%s-%s", msg.TabID, msg.ElementHash, msg.OrderNumber)
	if _, ok := st.notified[msg.OrderNumber]; ok {
		return
	}
	if _, ok := st.processed[key]; ok {
		return
	}

	st.processed[key] = struct{}{}
	st.notified[msg.OrderNumber] = struct{}{}
	st.orders = append(st.orders, msg.OrderNumber)
	if c.store != nil {
		if err := c.store.AddOrder(ctx, msg.OrderNumber); err != nil {
			c.log.Warn("persist order failed",
				logx.String("order", msg.OrderNumber),
				logx.Any("err", err))
		}
	}

	if c.notifier != nil {
		c.notifier.NotifyOrder(msg.OrderNumber)
	}
	c.bus.Publish(eventbus.Event{
		Type: protocol.ActionPlayAlert,
		Data: protocol.PlayAlert{OrderNumber: msg.OrderNumber, TabID: msg.TabID},
	})

	c.log.Info("sale detected",
		logx.String("order", msg.OrderNumber),
		logx.Int("tab_id", msg.TabID))
}

func (c *Coordinator) broadcastStatus(monitoring bool) {
	c.bus.Publish(eventbus.Event{
		Type: protocol.ActionMonitoringStatusChanged,
		Data: protocol.MonitoringStatusChanged{IsMonitoring: monitoring},
	})
}
