package utils

import "strings"

const whatsAppPrefix = "whatsapp:"

// CanonicalAddress returns the WhatsApp address form Twilio uses in webhook
// From fields ("whatsapp:+5511999990001"). Bare numbers get the prefix; other
// address kinds (containing "@") are only trimmed.
func CanonicalAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" || strings.Contains(address, "@") {
		return address
	}
	number := strings.TrimSpace(strings.TrimPrefix(address, whatsAppPrefix))
	number = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, number)
	if number == "" {
		return ""
	}
	return whatsAppPrefix + number
}

// SameAddress reports whether two addresses reach the same WhatsApp user
func SameAddress(a, b string) bool {
	ca := CanonicalAddress(a)
	return ca != "" && ca == CanonicalAddress(b)
}
