package scan

import (
	"reflect"
	"testing"
)

func TestFindOrdersRequiresTrigger(t *testing.T) {
	text := "Venda #1234 confirmada"
	if got := FindOrders(text, nil); got != nil {
		t.Fatalf("expected no orders without trigger substring, got %v", got)
	}
	text = "Venda #1234 confirmada - 2 Unidades" // trigger match is case-insensitive
	got := FindOrders(text, nil)
	want := []string{"Venda #1234"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOrders = %v, want %v", got, want)
	}
}

func TestFindOrdersOrderedUnique(t *testing.T) {
	text := "2 unidades\nVenda #10 ... Pedido #20 ... Venda #10 ... ordem #30"
	got := FindOrders(text, nil)
	// Pattern order groups matches: all venda-# first, then pedido-#, then ordem-#.
	want := []string{"Venda #10", "Pedido #20", "ordem #30"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOrders = %v, want %v", got, want)
	}
}

func TestFindOrdersBareNumberNeedsFourDigits(t *testing.T) {
	text := "2 unidades venda 123 pedido 4567"
	got := FindOrders(text, nil)
	want := []string{"pedido 4567"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOrders = %v, want %v", got, want)
	}
}

func TestFindOrdersIncludesSelectorScopes(t *testing.T) {
	full := "carrinho com 2 unidades"
	sel := []string{"Pedido # 555", "Pedido # 555", "venda 99887"}
	got := FindOrders(full, sel)
	want := []string{"Pedido # 555", "venda 99887"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindOrders = %v, want %v", got, want)
	}
}

func TestRunSkipsOrderSearchWhenTextUnchanged(t *testing.T) {
	snap := Snapshot{
		TabID:    7,
		URL:      "https://example.test/sale",
		FullText: "Venda #1234 ... 2 unidades",
	}

	res := Run(snap, "")
	if len(res.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(res.Detections))
	}
	d := res.Detections[0]
	if d.Order != "Venda #1234" {
		t.Fatalf("unexpected order %q", d.Order)
	}
	if want := Fingerprint(snap.FullText, d.Order, snap.URL); d.Fingerprint != want {
		t.Fatalf("fingerprint = %q, want %q", d.Fingerprint, want)
	}

	// Same content again: order search is skipped entirely.
	res = Run(snap, snap.FullText)
	if len(res.Detections) != 0 {
		t.Fatalf("expected no detections on unchanged text, got %v", res.Detections)
	}
}

func TestRunConditionsAlwaysEvaluated(t *testing.T) {
	snap := Snapshot{
		FullText:   "unchanged",
		Quantities: []string{"Quantidade: 2 unidades"},
	}
	// Even with unchanged text the condition battery must run.
	res := Run(snap, snap.FullText)
	if !reflect.DeepEqual(res.Cases, []string{CaseTwoUnits}) {
		t.Fatalf("Cases = %v, want [%s]", res.Cases, CaseTwoUnits)
	}
}

func TestDedupOrdered(t *testing.T) {
	in := []string{"b", "a", "b", "c", "a"}
	want := []string{"b", "a", "c"}
	if got := dedupOrdered(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("dedupOrdered = %v, want %v", got, want)
	}
}
