// Package validator cleans SMS templates of content carriers reject:
// overlong text, currency symbols and payment or gambling vocabulary.
package validator

import (
	"regexp"
	"strings"
	"time"
)

const (
	MaxLength    = 160
	DismissAfter = 3 * time.Second
)

var CurrencySymbols = []string{"€", "$", "£", "¥", "₹", "₽", "¢", "₿"}

var BlockedTerms = []string{
	"paiement", "payment", "euro", "euros", "argent", "money",
	"virement", "carte", "card", "credit", "debit", "compte",
	"account", "solde", "balance", "remboursement", "refund",
	"frais", "fees", "taxe", "tax", "facture", "invoice",
	"acheter", "achetez", "buy", "payer", "payez", "pay", "prix", "price",
	"gratuit", "free", "offre", "offer", "promo", "reduction",
	"cash", "espece", "cheque", "bitcoin", "crypto",
	"casino", "montant", "gain", "gagner", "gagnez", "jackpot", "mise",
	"pari", "parier", "pariez", "jeu", "jouer", "jouez", "loterie", "loto",
}

var (
	blockedRes    = compileBlocked(BlockedTerms)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	leadingRunRe  = regexp.MustCompile(`^\s{2,}`)
	trailingRunRe = regexp.MustCompile(`\s{2,}$`)
)

func compileBlocked(terms []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		res = append(res, regexp.MustCompile(`(?i)(^|\s)`+regexp.QuoteMeta(term)+`(\s|$)`))
	}
	return res
}

// Clean returns raw truncated to MaxLength runes with currency symbols and
// blocked terms removed. Single leading or trailing spaces are kept.
func Clean(raw string) string {
	cleaned := truncate(raw, MaxLength)
	if cleaned == "" {
		return cleaned
	}

	cleaned = stripCurrency(cleaned)

	removed := false
	for _, re := range blockedRes {
		// a match consumes the separating space, so back-to-back repeats
		// need another pass
		for re.MatchString(cleaned) {
			cleaned = re.ReplaceAllString(cleaned, "${1}${2}")
			removed = true
		}
	}
	if removed {
		cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	}

	if leadingRunRe.MatchString(cleaned) || trailingRunRe.MatchString(cleaned) {
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func stripCurrency(s string) string {
	for _, sym := range CurrencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	return s
}

func hasCurrency(s string) bool {
	for _, sym := range CurrencySymbols {
		if strings.Contains(s, sym) {
			return true
		}
	}
	return false
}

func hasBlockedTerm(s string) bool {
	for _, re := range blockedRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
