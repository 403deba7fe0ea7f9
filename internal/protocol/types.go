// Package protocol defines the action-tagged messages exchanged between the
// page watchers and the alert coordinator.
//
// One-way messages travel over the in-process event bus (eventbus.Event.Type
// carries the action, Data carries the payload). Request/response operations
// (getStatus, toggleMonitoring, getLog, clearLog) are answered synchronously
// by the coordinator's actor loop.
package protocol

// Actions. String values double as eventbus event types.
const (
	ActionOrderFound              = "orderFound"
	ActionSizeAlert               = "sizeAlert"
	ActionGetStatus               = "getStatus"
	ActionToggleMonitoring        = "toggleMonitoring"
	ActionGetLog                  = "getLog"
	ActionClearLog                = "clearLog"
	ActionPlayAlert               = "playAlert"
	ActionMonitoringStatusChanged = "monitoringStatusChanged"
)

// OrderFound is emitted by a watcher once per newly observed order match.
// Fire-and-forget: delivery failure is swallowed and scanning continues.
type OrderFound struct {
	OrderNumber string `json:"orderNumber"`
	ElementHash string `json:"elementHash"`
	TabID       int    `json:"tabId"`
}

// SizeAlert is the secondary, informational alert channel for the
// female-size > male-size condition.
type SizeAlert struct {
	Message    string `json:"message"`
	FemaleSize int    `json:"femaleSize"`
	MaleSize   int    `json:"maleSize"`
	TabID      int    `json:"tabId"`
}

// PlayAlert asks the originating tab to play the alert sound and show the
// in-page notification. Best-effort: the tab may have navigated away.
type PlayAlert struct {
	OrderNumber string `json:"orderNumber"`
	TabID       int    `json:"tabId"`
}

// MonitoringStatusChanged is broadcast to every tab after a toggle.
type MonitoringStatusChanged struct {
	IsMonitoring bool `json:"isMonitoring"`
}

// Status is the getStatus response.
type Status struct {
	IsMonitoring        bool `json:"isMonitoring"`
	NotifiedOrdersCount int  `json:"notifiedOrdersCount"`
}

// Log is the getLog response: notified orders in first-seen order.
type Log struct {
	Orders []string `json:"orders"`
}
