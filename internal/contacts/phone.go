package contacts

import (
	"fmt"
	"strings"
)

// PhoneCandidates is the lookup order for a contact's phone number.
var PhoneCandidates = []string{"telephone", "phone", "tel", "mobile"}

// PhoneField picks the first header that looks like a phone column.
func PhoneField(headers []string) string {
	for _, h := range headers {
		for _, c := range PhoneCandidates {
			if strings.Contains(h, c) {
				return h
			}
		}
	}
	return "telephone"
}

// ResolvePhone returns the first non-empty candidate phone field.
func ResolvePhone(fields map[string]string) string {
	for _, c := range PhoneCandidates {
		if v := strings.TrimSpace(fields[c]); v != "" {
			return v
		}
	}
	return ""
}

// Label names a contact in error lists: the value of its first header, else its position.
func Label(c Contact, headers []string, index int) string {
	if len(headers) > 0 {
		if v := c.Fields[headers[0]]; v != "" {
			return v
		}
	}
	return fmt.Sprintf("Contact %d", index+1)
}

// FormatE164 strips separators and prefixes a national number with countryCode.
func FormatE164(number, countryCode string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, number)
	if cleaned == "" || strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if strings.HasPrefix(cleaned, "00") {
		return "+" + cleaned[2:]
	}
	return countryCode + strings.TrimPrefix(cleaned, "0")
}

// DisplayName is what the voice assistant calls the customer.
func DisplayName(fields map[string]string) string {
	if v := strings.TrimSpace(fields["nom"]); v != "" {
		return v
	}
	return "Client"
}
