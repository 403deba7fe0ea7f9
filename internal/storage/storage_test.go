package storage

import (
	"context"
	"path/filepath"
	"testing"

	logx "sentinela/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		if st != nil {
			t.Fatalf("driver %q: expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, saved, _, err := m.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Fatal("fresh store must report no saved state")
	}

	if err := m.SetMonitoring(ctx, true); err != nil {
		t.Fatal(err)
	}
	for _, o := range []string{"Venda #1", "Venda #2", "Venda #1"} {
		if err := m.AddOrder(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	monitoring, saved, orders, err := m.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !monitoring || !saved {
		t.Fatalf("monitoring=%v saved=%v, want true/true", monitoring, saved)
	}
	if len(orders) != 2 || orders[0] != "Venda #1" || orders[1] != "Venda #2" {
		t.Fatalf("orders = %v", orders)
	}

	if err := m.ClearOrders(ctx); err != nil {
		t.Fatal(err)
	}
	monitoring, _, orders, _ = m.LoadState(ctx)
	if !monitoring {
		t.Fatal("clear must not touch the monitoring flag")
	}
	if len(orders) != 0 {
		t.Fatalf("orders after clear = %v", orders)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sentinela.db")

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := st.SetMonitoring(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := st.AddOrder(ctx, "Venda #1234"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddOrder(ctx, "Venda #1234"); err != nil {
		t.Fatal(err)
	}
	if err := st.AddOrder(ctx, "pedido 9999"); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen: state must survive.
	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	monitoring, saved, orders, err := st.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !monitoring || !saved {
		t.Fatalf("monitoring=%v saved=%v after reopen", monitoring, saved)
	}
	want := []string{"Venda #1234", "pedido 9999"}
	if len(orders) != 2 || orders[0] != want[0] || orders[1] != want[1] {
		t.Fatalf("orders = %v, want %v", orders, want)
	}

	if err := st.ClearOrders(ctx); err != nil {
		t.Fatal(err)
	}
	_, _, orders, _ = st.LoadState(ctx)
	if len(orders) != 0 {
		t.Fatalf("orders after clear = %v", orders)
	}
}
