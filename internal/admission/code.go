package admission

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet omits lookalike characters (0/O, 1/I/L) so confirmation
// codes survive being read over the phone.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// newConfirmationCode returns a code like "HL-7KQ2MX".
func newConfirmationCode(prefix string) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating confirmation code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("%s-%s", prefix, string(buf)), nil
}
