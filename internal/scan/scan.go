// Package scan holds the pure pattern-matching core: given a snapshot of a
// page's rendered text, it decides which orders and conditions are present.
// It never touches the live DOM, which keeps it unit-testable without a
// browser; the watcher feeds it snapshots and applies the visual side effects.
package scan

import (
	"regexp"
	"strings"
)

// TriggerSubstring gates the order-number search: the (lowercased) page text
// must contain it before any order pattern is tried.
const TriggerSubstring = "2 unidades"

// Order patterns, in fixed evaluation order. The full match (label + optional
// '#' + digits) is the order identifier, not just the digit group.
var orderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)venda\s*#\s*\d+`),
	regexp.MustCompile(`(?i)pedido\s*#\s*\d+`),
	regexp.MustCompile(`(?i)ordem\s*#\s*\d+`),
	regexp.MustCompile(`(?i)venda\s*\d{4,}`),
	regexp.MustCompile(`(?i)pedido\s*\d{4,}`),
}

// OrderSelectors are the element scopes searched in addition to the full page
// text. Exposed so the snapshot script and the scanner stay in sync.
var OrderSelectors = []string{
	`[class*="order"]`, `[class*="venda"]`, `[class*="pedido"]`, `[id*="order"]`,
	`[id*="venda"]`, `[id*="pedido"]`, `h1, h2, h3, h4, h5, h6`, `.title, .header, .info`,
}

// Condition-check selectors (page-template specific).
const (
	QuantitySelector    = `.sc-quantity.sc-quantity__unique span`
	SublabelSelector    = `.sc-title-subtitle-action__sublabel, .section-item-information`
	TitleSelector       = `.sc-detail-title__text`
	DescriptionSelector = `.sc-detail-title__text, .andes-list__item-primary, .sc-title-subtitle-action__sublabel, [class*="title"], [class*="description"]`
	ButtonSelector      = `.andes-button__content`
)

// Snapshot is a point-in-time capture of one tab's rendered content.
type Snapshot struct {
	TabID int
	URL   string

	// FullText is document.body.innerText.
	FullText string

	// SelectorTexts holds the textContent of every element matched by
	// OrderSelectors, in DOM order.
	SelectorTexts []string

	// Condition-check scopes.
	Quantities   []string // QuantitySelector
	Sublabels    []string // SublabelSelector
	Titles       []string // TitleSelector
	Descriptions []string // DescriptionSelector
	Buttons      []string // ButtonSelector
}

// Detection is one (order, fingerprint) observation within a snapshot.
type Detection struct {
	Order       string
	Fingerprint string
}

// Result is the outcome of one scan cycle.
type Result struct {
	// Detections is empty when the order search was skipped (unchanged text)
	// or the trigger substring is absent.
	Detections []Detection

	// Cases are the human-readable condition labels, in battery order,
	// possibly with duplicates (the banner dedups them).
	Cases []string

	SizeAlerts []SizeMatch
}

// Run executes one scan cycle over snap.
//
// lastText is the previous cycle's FullText for this tab: when unchanged, the
// order-number search is skipped as a pure optimization. The condition battery
// always runs regardless (condition state can depend on structure, and the
// historical behavior of always re-running the highlight pass is preserved).
func Run(snap Snapshot, lastText string) Result {
	var res Result
	if snap.FullText != lastText {
		for _, order := range FindOrders(snap.FullText, snap.SelectorTexts) {
			res.Detections = append(res.Detections, Detection{
				Order:       order,
				Fingerprint: Fingerprint(snap.FullText, order, snap.URL),
			})
		}
	}
	res.Cases, res.SizeAlerts = CheckConditions(snap)
	return res
}

// FindOrders collects order identifiers from the full page text and the
// selector-scoped texts. Matches are ordered-unique: first occurrence wins,
// exact-string duplicates are dropped. The whole search is gated on
// TriggerSubstring being present in the lowercased full text.
func FindOrders(fullText string, selectorTexts []string) []string {
	if !strings.Contains(strings.ToLower(fullText), TriggerSubstring) {
		return nil
	}

	var orders []string
	seen := make(map[string]struct{})
	collect := func(text string) {
		for _, pat := range orderPatterns {
			for _, m := range pat.FindAllString(text, -1) {
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				orders = append(orders, m)
			}
		}
	}

	collect(fullText)
	for _, t := range selectorTexts {
		collect(t)
	}
	return orders
}

// dedupOrdered drops exact-string duplicates, keeping first-seen order.
func dedupOrdered(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
