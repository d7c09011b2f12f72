package validator

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClean_Truncates(t *testing.T) {
	raw := strings.Repeat("a", 200)
	out := Clean(raw)
	assert.Equal(t, 160, utf8.RuneCountInString(out))

	accented := strings.Repeat("é", 170)
	assert.Equal(t, 160, utf8.RuneCountInString(Clean(accented)))
}

func TestClean_TruncatesBeforeStripping(t *testing.T) {
	raw := strings.Repeat("b", 158) + "€€" + "cc"
	out := Clean(raw)
	assert.Equal(t, strings.Repeat("b", 158), out)
}

func TestClean_CurrencyAndTerms(t *testing.T) {
	out := Clean("Payez 10€ maintenant")

	for _, sym := range CurrencySymbols {
		assert.NotContains(t, out, sym)
	}
	assert.False(t, hasBlockedTerm(out), out)
	assert.NotContains(t, out, "  ")
	assert.Equal(t, " 10 maintenant", out)
}

func TestClean_CurrencyOnly(t *testing.T) {
	assert.Equal(t, "Total 15 ou 20", Clean("Total 15$ ou 20£"))
}

func TestClean_TermsCaseInsensitiveWholeWord(t *testing.T) {
	assert.Equal(t, "Votre rendez-vous demain", Clean("Votre CASINO rendez-vous demain"))
	assert.Equal(t, "Offrez un paysage", Clean("Offrez un paysage"))
	assert.Equal(t, "Bonjour ", Clean("Bonjour promo"))
	assert.Equal(t, "Bonjour demain", Clean("Bonjour promo promo demain"))

	out := Clean("pay pay pay")
	assert.False(t, hasBlockedTerm(out), "%q", out)
	assert.Equal(t, "Rappel ", Clean("Rappel casino CASINO casino"))
}

func TestClean_Whitespace(t *testing.T) {
	assert.Equal(t, " hello ", Clean(" hello "))
	assert.Equal(t, "hello", Clean("  hello  "))
	assert.Equal(t, "hello", Clean("hello  "))
	assert.Equal(t, "", Clean(""))
}

func TestCheck_Reasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	out := Check("Bonjour {nom}", now)
	assert.False(t, out.Changed)
	assert.Nil(t, out.Notice)

	out = Check("Prix 10€", now)
	assert.True(t, out.Changed)
	assert.Equal(t, ReasonCurrency, out.Notice.Reason)
	assert.Equal(t, now.Add(3*time.Second), out.Notice.ExpiresAt)

	out = Check("Jouez au casino", now)
	assert.Equal(t, ReasonTerm, out.Notice.Reason)

	out = Check(strings.Repeat("x", 161), now)
	assert.Equal(t, ReasonLength, out.Notice.Reason)

	out = Check("  rdv  ", now)
	assert.True(t, out.Changed)
	assert.Nil(t, out.Notice)
}

func TestNotice_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := Check("10€", now).Notice

	assert.False(t, n.Expired(now.Add(2*time.Second)))
	assert.True(t, n.Expired(now.Add(3*time.Second)))

	var none *Notice
	assert.True(t, none.Expired(now))
}
