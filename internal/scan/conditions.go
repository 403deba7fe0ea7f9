package scan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Condition case labels. The size-comparison case label is the formatted
// message itself (see SizeMatch.Message).
const (
	CaseTwoUnits    = "2 unidades"
	CaseWithStone   = "com pedra"
	CaseOnePackage  = "1 pacote"
	CasePromoPhrase = "6mm Banhada Ouro Com Friso Prateado"
	CaseSeeMessages = "Ver mensagens"
)

var (
	femaleSizeRe = regexp.MustCompile(`(?i)Tamanho::?\s*Feminino\s*-\s*(\d+)`)
	maleSizeRe   = regexp.MustCompile(`(?i)Tamanho::?\s*Masculino\s*-\s*(\d+)`)
)

// SizeMatch is a satisfied female-size > male-size comparison.
type SizeMatch struct {
	Female  int
	Male    int
	Message string
}

// CompareSizes extracts both size tokens from a sublabel text and reports a
// match when the female size is strictly greater. Matching is positional
// within the text only by regex, so token order does not matter.
func CompareSizes(text string) (SizeMatch, bool) {
	fm := femaleSizeRe.FindStringSubmatch(text)
	mm := maleSizeRe.FindStringSubmatch(text)
	if fm == nil || mm == nil {
		return SizeMatch{}, false
	}
	female, err := strconv.Atoi(fm[1])
	if err != nil {
		return SizeMatch{}, false
	}
	male, err := strconv.Atoi(mm[1])
	if err != nil {
		return SizeMatch{}, false
	}
	if female <= male {
		return SizeMatch{}, false
	}
	return SizeMatch{
		Female:  female,
		Male:    male,
		Message: fmt.Sprintf("Tamanho Feminino (%d) > Masculino (%d)", female, male),
	}, true
}

// CheckConditions runs the fixed condition battery over the snapshot's
// selector-scoped texts and returns the satisfied case labels (battery order)
// plus any size alerts. Every case except "Ver mensagens" also gets an
// in-page highlight, applied by the watcher's highlight script.
func CheckConditions(snap Snapshot) (cases []string, sizes []SizeMatch) {
	// 1. "2 unidades" in the quantity element.
	for _, t := range snap.Quantities {
		if strings.Contains(strings.ToLower(t), CaseTwoUnits) {
			cases = append(cases, CaseTwoUnits)
		}
	}

	// 2. "com pedra" and the size comparison in sublabel/info blocks.
	for _, t := range snap.Sublabels {
		if strings.Contains(strings.ToLower(t), CaseWithStone) {
			cases = append(cases, CaseWithStone)
		}
		if m, ok := CompareSizes(t); ok {
			cases = append(cases, m.Message)
			sizes = append(sizes, m)
		}
	}

	// 3. "1 pacote" in the title.
	for _, t := range snap.Titles {
		if strings.Contains(t, CaseOnePackage) {
			cases = append(cases, CaseOnePackage)
		}
	}

	// 4. The fixed promotional phrase in title/description blocks.
	promo := strings.ToLower(CasePromoPhrase)
	for _, t := range snap.Descriptions {
		if strings.Contains(strings.ToLower(t), promo) {
			cases = append(cases, CasePromoPhrase)
		}
	}

	// 5. "Ver mensagens" button (detected, never highlighted).
	for _, t := range snap.Buttons {
		if strings.TrimSpace(t) == CaseSeeMessages {
			cases = append(cases, CaseSeeMessages)
		}
	}

	return cases, sizes
}

// BannerCases returns the deduplicated case labels shown in the persistent
// in-page banner, preserving battery order.
func BannerCases(cases []string) []string {
	return dedupOrdered(cases)
}
