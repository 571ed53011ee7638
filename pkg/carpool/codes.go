package carpool

import (
	"crypto/rand"
	"strings"
)

// invitationCodeChars excludes characters that are easy to misread (0/O, 1/I/L).
const invitationCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random invitation code of DefaultCodeLength characters.
func GenerateCode() (string, error) {
	b := make([]byte, DefaultCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 256 is a multiple of len(invitationCodeChars), so the modulo is unbiased.
	for i := range b {
		b[i] = invitationCodeChars[int(b[i])%len(invitationCodeChars)]
	}
	return string(b), nil
}

// NormalizeCode trims and upper-cases user-supplied codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
