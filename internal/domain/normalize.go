package domain

import (
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonDigitRegex   = regexp.MustCompile(`\D+`)
)

// NormalizeEmail lowercases and trims the provided email.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// NormalizePhone reduces a phone number to its E.164 form (+ and digits).
// An international "00" prefix is treated as "+".
func NormalizePhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(strings.TrimSpace(phone), "")
	if digits == "" {
		return ""
	}
	digits = strings.TrimPrefix(digits, "00")
	return "+" + digits
}

// NormalizeName collapses whitespace and trims the result.
func NormalizeName(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// Normalize canonicalizes contact fields in place.
func (in *NewRecipient) Normalize() {
	in.Name = NormalizeName(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = NormalizePhone(in.Phone)
	in.AccountLast4 = strings.TrimSpace(in.AccountLast4)
}

// Normalize canonicalizes the provided profile fields in place.
func (u *ProfileUpdate) Normalize() {
	if u.FullName != nil {
		v := NormalizeName(*u.FullName)
		u.FullName = &v
	}
	if u.Username != nil {
		v := strings.TrimSpace(*u.Username)
		u.Username = &v
	}
	if u.Phone != nil {
		v := NormalizePhone(*u.Phone)
		u.Phone = &v
	}
}
