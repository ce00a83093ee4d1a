package flows

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern      = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	platePattern      = regexp.MustCompile(`^[A-Z]{3}[0-9][0-9A-Z][0-9]{2}$`)
	chassisPattern    = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	policyEndPattern  = regexp.MustCompile(`^(0?[1-9]|1[0-2])\s*[/\-]\s*(\d{2}|\d{4})$`)
	nationalIDPattern = regexp.MustCompile(`^[0-9.\-\s]+$`)
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeNationalID strips the CPF mask ("529.982.247-25" -> "52998224725")
func NormalizeNationalID(s string) string {
	return digitsOnly(s)
}

// ValidNationalID checks a CPF, masked or not, including both check digits
func ValidNationalID(s string) bool {
	s = strings.TrimSpace(s)
	if !nationalIDPattern.MatchString(s) {
		return false
	}
	d := digitsOnly(s)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return cpfCheckDigit(d[:9], 10) == d[9] && cpfCheckDigit(d[:10], 11) == d[10]
}

func cpfCheckDigit(prefix string, weight int) byte {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte('0' + r)
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail performs a pragmatic shape check on a normalized address
func ValidEmail(s string) bool {
	return len(s) <= 254 && emailPattern.MatchString(s)
}

// NormalizePostalCode returns the 8 CEP digits
func NormalizePostalCode(s string) string {
	return digitsOnly(s)
}

// ValidPostalCode accepts "13015900" or "13015-900"
func ValidPostalCode(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' && r != '.' && r != ' ' {
			return false
		}
	}
	d := digitsOnly(s)
	return len(d) == 8 && d != "00000000"
}

// NormalizePlate upper-cases and removes separators
func NormalizePlate(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "", ".", "").Replace(s)
}

// ValidPlate accepts the old (ABC1234) and Mercosul (ABC1D23) formats
func ValidPlate(s string) bool {
	return platePattern.MatchString(NormalizePlate(s))
}

// ValidChassis accepts a 17-character VIN (no I, O or Q)
func ValidChassis(s string) bool {
	return chassisPattern.MatchString(NormalizePlate(s))
}

// CleanName collapses whitespace and validates a person's name
func CleanName(s string) (string, bool) {
	name := strings.Join(strings.Fields(s), " ")
	if len([]rune(name)) > 80 {
		return "", false
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '\'' || r == '-' || r == '.':
		default:
			return "", false
		}
	}
	if letters < 2 {
		return "", false
	}
	return name, true
}

// ValidPolicyEnd accepts "MM/AAAA" or "MM/AA"
func ValidPolicyEnd(s string) bool {
	return policyEndPattern.MatchString(strings.TrimSpace(s))
}
