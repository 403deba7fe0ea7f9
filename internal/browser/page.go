package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "sentinela/pkg/logx"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/gjson"
)

// ErrTargetGone reports that the page target closed or navigated away.
var ErrTargetGone = errors.New("target gone")

// Page is an attached debugger session to one browser page.
type Page struct {
	tabID    int
	targetID string
	url      string

	conn        *rpcc.Conn
	client      *cdp.Client
	evalTimeout time.Duration
	log         logx.Logger
}

func (p *Page) TabID() int       { return p.tabID }
func (p *Page) TargetID() string { return p.targetID }
func (p *Page) URL() string      { return p.url }

func (p *Page) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Eval runs expr in the page and returns its JSON value.
func (p *Page) Eval(ctx context.Context, expr string) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.evalTimeout)
	defer cancel()

	reply, err := p.client.Runtime.Evaluate(ctx,
		runtime.NewEvaluateArgs(expr).SetReturnByValue(true))
	if err != nil {
		return gjson.Result{}, err
	}
	if reply.ExceptionDetails != nil {
		return gjson.Result{}, fmt.Errorf("evaluate: %s", reply.ExceptionDetails.Text)
	}
	return gjson.ParseBytes(reply.Result.Value), nil
}

// Exec runs expr for its side effects and discards the result.
func (p *Page) Exec(ctx context.Context, expr string) error {
	ctx, cancel := context.WithTimeout(ctx, p.evalTimeout)
	defer cancel()

	reply, err := p.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr))
	if err != nil {
		return err
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("evaluate: %s", reply.ExceptionDetails.Text)
	}
	return nil
}

// AddBinding exposes window.<name>(payload) in the page. Calls arrive via
// BindingCalls.
func (p *Page) AddBinding(ctx context.Context, name string) error {
	return p.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(name))
}

// BindingCalls streams payloads passed to the named binding until ctx is
// canceled or the session drops, after which the channel closes.
func (p *Page) BindingCalls(ctx context.Context, name string) (<-chan string, error) {
	stream, err := p.client.Runtime.BindingCalled(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			if ev.Name != name {
				continue
			}
			select {
			case out <- ev.Payload:
			default:
				// The consumer rescans on every delivery, so dropping a
				// payload under backlog loses nothing.
				p.log.Debug("binding payload dropped", logx.Int("tab_id", p.tabID))
			}
		}
	}()
	return out, nil
}

// LoadEvents streams page load completions until ctx is canceled or the
// session drops, after which the channel closes.
func (p *Page) LoadEvents(ctx context.Context) (<-chan struct{}, error) {
	stream, err := p.client.Page.LoadEventFired(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			if _, err := stream.Recv(); err != nil {
				return
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}
