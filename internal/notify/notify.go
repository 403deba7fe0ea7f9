// Package notify delivers desktop notifications for detected sales.
//
// Delivery is asynchronous: callers enqueue and a worker drains the queue
// under a rate limit, so a burst of detections never blocks the coordinator.
package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
)

// Notification is one desktop alert.
type Notification struct {
	ID      string
	Title   string
	Message string

	// Urgent notifications also play the system alert sound.
	Urgent bool
}

// Sender delivers a single notification. Implementations must be safe for
// use from one worker goroutine.
type Sender interface {
	Send(n Notification) error
}

// DesktopSender shows notifications through the OS notification service.
type DesktopSender struct {
	// Icon is an optional path to the notification icon.
	Icon string
}

func (d *DesktopSender) Send(n Notification) error {
	if n.Urgent {
		if err := beeep.Alert(n.Title, n.Message, d.Icon); err != nil {
			return fmt.Errorf("alert: %w", err)
		}
		return nil
	}
	if err := beeep.Notify(n.Title, n.Message, d.Icon); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// NewID returns a fresh notification id: "sentinela_<unix-ms>_<random>".
func NewID() string {
	return fmt.Sprintf("sentinela_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:7])
}

// OrderNotification builds the primary alert for a newly detected order.
func OrderNotification(order string) Notification {
	return Notification{
		ID:      NewID(),
		Title:   "Sentinela Ranger - Nova Venda!",
		Message: "Detectada venda com 2 unidades:\n" + order,
		Urgent:  true,
	}
}

// fallbackNotification is the minimal alert used when the primary one fails.
func fallbackNotification(order string) Notification {
	return Notification{
		ID:      NewID(),
		Title:   "Sentinela Ranger",
		Message: "Nova venda: " + order,
	}
}
