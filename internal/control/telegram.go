// Package control exposes the coordinator's operations over Telegram, so the
// daemon can be driven from a phone while the browser runs unattended.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sentinela/internal/coordinator"
	logx "sentinela/pkg/logx"

	tele "gopkg.in/telebot.v4"
)

type Config struct {
	Token        string
	OwnerUserIDs []int64
	PollTimeout  time.Duration // default 10s
}

// Telegram maps bot commands onto coordinator operations:
//
//	/status -> getStatus
//	/toggle -> toggleMonitoring
//	/log    -> getLog
//	/clear  -> clearLog
type Telegram struct {
	cfg   Config
	coord *coordinator.Coordinator
	bot   *tele.Bot
	log   logx.Logger
}

func NewTelegram(cfg Config, coord *coordinator.Coordinator, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}

	t := &Telegram{cfg: cfg, coord: coord, bot: bot, log: log}
	t.register()
	return t, nil
}

func (t *Telegram) register() {
	t.bot.Handle("/status", t.guarded(func(ctx context.Context, c tele.Context) error {
		st, err := t.coord.Status(ctx)
		if err != nil {
			return err
		}
		state := "ativo"
		if !st.IsMonitoring {
			state = "pausado"
		}
		return c.Send(fmt.Sprintf("Monitoramento: %s\nVendas notificadas: %d", state, st.NotifiedOrdersCount))
	}))

	t.bot.Handle("/toggle", t.guarded(func(ctx context.Context, c tele.Context) error {
		on, err := t.coord.Toggle(ctx)
		if err != nil {
			return err
		}
		if on {
			return c.Send("Monitoramento ativado")
		}
		return c.Send("Monitoramento pausado")
	}))

	t.bot.Handle("/log", t.guarded(func(ctx context.Context, c tele.Context) error {
		orders, err := t.coord.Log(ctx)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return c.Send("Nenhuma venda notificada")
		}
		var b strings.Builder
		for i, o := range orders {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o)
		}
		return c.Send(b.String())
	}))

	t.bot.Handle("/clear", t.guarded(func(ctx context.Context, c tele.Context) error {
		if err := t.coord.Clear(ctx); err != nil {
			return err
		}
		return c.Send("Registro de vendas limpo")
	}))
}

// guarded wraps a handler with the owner allowlist and a per-command timeout.
func (t *Telegram) guarded(fn func(ctx context.Context, c tele.Context) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !t.allowed(sender.ID) {
			t.log.Warn("command from unauthorized user", logx.Int64("user_id", senderID(sender)))
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx, c); err != nil {
			t.log.Warn("command failed", logx.String("text", c.Text()), logx.Any("err", err))
			return c.Send("Erro: " + err.Error())
		}
		return nil
	}
}

func senderID(u *tele.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func (t *Telegram) allowed(id int64) bool {
	if len(t.cfg.OwnerUserIDs) == 0 {
		return false
	}
	for _, owner := range t.cfg.OwnerUserIDs {
		if owner == id {
			return true
		}
	}
	return false
}

// Notify mirrors an alert text to every owner. Best effort: a failed send is
// logged and the remaining owners still get theirs.
func (t *Telegram) Notify(text string) {
	for _, id := range t.cfg.OwnerUserIDs {
		if _, err := t.bot.Send(&tele.User{ID: id}, text); err != nil {
			t.log.Warn("mirror send failed", logx.Int64("user_id", id), logx.Any("err", err))
		}
	}
}

// Run polls Telegram until ctx is canceled.
func (t *Telegram) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.bot.Start()
	}()
	t.log.Info("telegram control started")

	select {
	case <-ctx.Done():
		t.bot.Stop()
		<-done
		return nil
	case <-done:
		return errors.New("telegram poller exited")
	}
}
