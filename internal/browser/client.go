// Package browser attaches to a Chrome/Chromium instance over the DevTools
// protocol and exposes the small page surface the watchers need: evaluate
// script, receive binding callbacks, observe load events.
package browser

import (
	"context"
	"time"

	logx "sentinela/pkg/logx"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

type Config struct {
	// DevtoolsURL is the DevTools HTTP endpoint, e.g. "http://127.0.0.1:9222".
	DevtoolsURL string

	// EvalTimeout bounds one in-page evaluation. Default 10s.
	EvalTimeout time.Duration
}

// Target is one open page in the browser.
type Target struct {
	ID    string
	URL   string
	Title string
}

type Client struct {
	devtools    *devtool.DevTools
	evalTimeout time.Duration
	log         logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		devtools:    devtool.New(cfg.DevtoolsURL),
		evalTimeout: cfg.EvalTimeout,
		log:         log,
	}
}

// ListPages returns the browser's open page targets. Non-page targets
// (extensions, workers) are filtered out.
func (c *Client) ListPages(ctx context.Context) ([]Target, error) {
	targets, err := c.devtools.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		out = append(out, Target{ID: t.ID, URL: t.URL, Title: t.Title})
	}
	return out, nil
}

// Attach opens a debugger session to the target and enables the Page and
// Runtime domains. tabID is the caller-assigned stable id for this session.
func (c *Client) Attach(ctx context.Context, target Target, tabID int) (*Page, error) {
	targets, err := c.devtools.List(ctx)
	if err != nil {
		return nil, err
	}
	var wsURL string
	for _, t := range targets {
		if t.ID == target.ID {
			wsURL = t.WebSocketDebuggerURL
			break
		}
	}
	if wsURL == "" {
		return nil, ErrTargetGone
	}

	conn, err := rpcc.DialContext(ctx, wsURL)
	if err != nil {
		return nil, err
	}
	client := cdp.NewClient(conn)

	if err := client.Page.Enable(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := client.Runtime.Enable(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.log.Debug("attached to page",
		logx.Int("tab_id", tabID),
		logx.String("target", target.ID),
		logx.String("url", target.URL))

	return &Page{
		tabID:       tabID,
		targetID:    target.ID,
		url:         target.URL,
		conn:        conn,
		client:      client,
		evalTimeout: c.evalTimeout,
		log:         c.log,
	}, nil
}
