package rooms

import "crypto/rand"

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

// CodeGenerator produces candidate room codes. Uniqueness is checked by the
// caller.
type CodeGenerator interface {
	NewCode() (string, error)
}

// RandomCodes draws codes from crypto/rand.
type RandomCodes struct{}

func (RandomCodes) NewCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[b[i]%byte(len(codeAlphabet))]
	}
	return string(b), nil
}
