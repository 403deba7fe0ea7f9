package scan

import (
	"reflect"
	"testing"
)

func TestCompareSizesFemaleGreater(t *testing.T) {
	m, ok := CompareSizes("Tamanho: Feminino - 40 ... Tamanho: Masculino - 38")
	if !ok {
		t.Fatal("expected a size match")
	}
	if m.Female != 40 || m.Male != 38 {
		t.Fatalf("sizes = (%d, %d), want (40, 38)", m.Female, m.Male)
	}
	if want := "Tamanho Feminino (40) > Masculino (38)"; m.Message != want {
		t.Fatalf("message = %q, want %q", m.Message, want)
	}
}

func TestCompareSizesOrderIndependent(t *testing.T) {
	a, okA := CompareSizes("Tamanho: Feminino - 40 ... Tamanho: Masculino - 38")
	b, okB := CompareSizes("Tamanho: Masculino - 38 ... Tamanho: Feminino - 40")
	if !okA || !okB {
		t.Fatal("expected matches in both token orders")
	}
	if a != b {
		t.Fatalf("order-dependent result: %+v vs %+v", a, b)
	}
}

func TestCompareSizesNoAlertWhenNotGreater(t *testing.T) {
	if _, ok := CompareSizes("Tamanho: Feminino - 36 ... Tamanho: Masculino - 40"); ok {
		t.Fatal("36 <= 40 must not alert")
	}
	if _, ok := CompareSizes("Tamanho: Feminino - 38 ... Tamanho: Masculino - 38"); ok {
		t.Fatal("equal sizes must not alert")
	}
	if _, ok := CompareSizes("Tamanho: Feminino - 40"); ok {
		t.Fatal("missing male token must not alert")
	}
}

func TestCompareSizesDoubleColonVariant(t *testing.T) {
	if _, ok := CompareSizes("Tamanho:: Feminino - 42 Tamanho:: Masculino - 40"); !ok {
		t.Fatal("double-colon label variant must match")
	}
}

func TestCheckConditionsBattery(t *testing.T) {
	snap := Snapshot{
		Quantities:   []string{"2 Unidades no carrinho"},
		Sublabels:    []string{"Anel com pedra. Tamanho: Feminino - 40 Tamanho: Masculino - 38"},
		Titles:       []string{"Kit 1 pacote com 10"},
		Descriptions: []string{"Aliança 6MM BANHADA OURO COM FRISO PRATEADO"},
		Buttons:      []string{"  Ver mensagens  "},
	}
	cases, sizes := CheckConditions(snap)
	wantCases := []string{
		CaseTwoUnits,
		CaseWithStone,
		"Tamanho Feminino (40) > Masculino (38)",
		CaseOnePackage,
		CasePromoPhrase,
		CaseSeeMessages,
	}
	if !reflect.DeepEqual(cases, wantCases) {
		t.Fatalf("cases = %v, want %v", cases, wantCases)
	}
	if len(sizes) != 1 || sizes[0].Female != 40 || sizes[0].Male != 38 {
		t.Fatalf("sizes = %+v", sizes)
	}
}

func TestCheckConditionsEmptySnapshot(t *testing.T) {
	cases, sizes := CheckConditions(Snapshot{FullText: "nothing interesting"})
	if len(cases) != 0 || len(sizes) != 0 {
		t.Fatalf("expected no matches, got cases=%v sizes=%v", cases, sizes)
	}
}

func TestCheckConditionsOnePackageCaseSensitive(t *testing.T) {
	// "1 pacote" is matched verbatim in the title block.
	cases, _ := CheckConditions(Snapshot{Titles: []string{"1 PACOTE grande"}})
	if len(cases) != 0 {
		t.Fatalf("uppercase title must not match, got %v", cases)
	}
}

func TestBannerCasesDedup(t *testing.T) {
	in := []string{CaseTwoUnits, CaseWithStone, CaseTwoUnits}
	want := []string{CaseTwoUnits, CaseWithStone}
	if got := BannerCases(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("BannerCases = %v, want %v", got, want)
	}
}
