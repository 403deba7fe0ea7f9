package scan

import "testing"

// Known-answer values computed with the original JavaScript hash
// (h = ((h << 5) - h) + charCodeAt, 32-bit truncation per step).
func TestHashKnownValues(t *testing.T) {
	cases := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"abc", 96354},
		{"Venda #1234", -217666047},
		{"pedido #42", 1448411782},
		{"Sentinela", -1797161827},
		{"ação", 3118866}, // non-ASCII goes through UTF-16 code units
	}
	for _, c := range cases {
		if got := Hash(c.in); got != c.want {
			t.Errorf("Hash(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	in := "Venda #9876 com pedra 2 unidades"
	first := Hash(in)
	for i := 0; i < 100; i++ {
		if got := Hash(in); got != first {
			t.Fatalf("Hash not deterministic: %d != %d", got, first)
		}
	}
}

func TestHashStringMatchesHash(t *testing.T) {
	if got, want := HashString("Venda #1234"), "-217666047"; got != want {
		t.Fatalf("HashString = %q, want %q", got, want)
	}
}

func TestFingerprintComposition(t *testing.T) {
	full, order, url := "page text", "Venda #1", "https://example.test/sale"
	if got, want := Fingerprint(full, order, url), HashString(full+order+url); got != want {
		t.Fatalf("Fingerprint = %q, want %q", got, want)
	}
	// Changing any component must change the input to the hash.
	if Fingerprint(full, order, url) == Fingerprint(full+"x", order, url) {
		t.Fatal("fingerprint ignored page text")
	}
}
