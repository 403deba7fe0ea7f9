package watcher

import (
	"strings"
	"testing"

	"sentinela/internal/scan"
)

func TestSnapshotScriptCoversAllSelectorGroups(t *testing.T) {
	js := snapshotScript()
	for _, sel := range []string{
		scan.QuantitySelector,
		scan.SublabelSelector,
		scan.TitleSelector,
		scan.DescriptionSelector,
		scan.ButtonSelector,
	} {
		if !strings.Contains(js, jsString(sel)) {
			t.Fatalf("snapshot script missing selector %q", sel)
		}
	}
	for _, sel := range scan.OrderSelectors {
		if !strings.Contains(js, jsString(sel)) {
			t.Fatalf("snapshot script missing order selector %q", sel)
		}
	}
	for _, key := range []string{"url:", "fullText:", "selectorTexts:", "quantities:", "sublabels:", "titles:", "descriptions:", "buttons:"} {
		if !strings.Contains(js, key) {
			t.Fatalf("snapshot script missing field %q", key)
		}
	}
}

func TestObserverScriptIsIdempotent(t *testing.T) {
	js := observerScript(mutationBinding)
	if !strings.Contains(js, "if (window.__sentinelaObserver) return true;") {
		t.Fatal("observer script must guard against double installation")
	}
	if !strings.Contains(js, jsString(mutationBinding)) {
		t.Fatal("observer script must call the mutation binding")
	}
	for _, opt := range []string{"childList: true", "subtree: true", "characterData: true"} {
		if !strings.Contains(js, opt) {
			t.Fatalf("observer script missing option %q", opt)
		}
	}
}

func TestHighlightScriptFlagsAndCases(t *testing.T) {
	js := highlightScript(true, true)
	if !strings.Contains(js, "const HIGHLIGHT = true, BANNER = true;") {
		t.Fatal("flags not rendered")
	}
	for _, label := range []string{scan.CaseTwoUnits, scan.CaseOnePackage, scan.CasePromoPhrase, scan.CaseSeeMessages} {
		if !strings.Contains(js, label) {
			t.Fatalf("highlight script missing case %q", label)
		}
	}
	if !strings.Contains(js, "sentinela-persistent-notification") {
		t.Fatal("highlight script must manage the banner element")
	}
	if !strings.Contains(js, "Atenção aos itens") {
		t.Fatal("banner title missing")
	}

	js = highlightScript(false, false)
	if !strings.Contains(js, "const HIGHLIGHT = false, BANNER = false;") {
		t.Fatal("disabled flags not rendered")
	}
}

func TestAlertScriptEscapesOrder(t *testing.T) {
	js := alertScript(`Venda #1 "quote" </div>`, true)
	if !strings.Contains(js, jsString(`Venda #1 "quote" </div>`)) {
		t.Fatal("order must be embedded as a JS string literal")
	}
	if !strings.Contains(js, "Detectado pedido com 2 unidades") {
		t.Fatal("toast body missing")
	}
	if !strings.Contains(js, "setTimeout(dismiss, 20000)") {
		t.Fatal("toast must auto-dismiss after 20s")
	}

	js = alertScript("x", false)
	if !strings.Contains(js, "if (false)") {
		t.Fatal("sound flag must gate the audio block")
	}
}

func TestUnhighlightScriptCleansEverything(t *testing.T) {
	js := unhighlightScript()
	for _, frag := range []string{
		"window.__sentinelaObserver",
		"sentinela-target",
		"sentinela-target-text",
		"sentinela-persistent-notification",
	} {
		if !strings.Contains(js, frag) {
			t.Fatalf("unhighlight script missing %q", frag)
		}
	}
}
