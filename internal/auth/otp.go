package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// otpCost is lower than the password cost: a 6-digit code is only ever
// compared a handful of times and is cleared after first use, so the
// issue path stays fast while the hash is still salted and slow enough.
const otpCost = 10

// OTPService generates and checks 6-digit email verification codes.
//
// Only the bcrypt hash of a code is ever persisted; the raw code is
// returned exactly once for out-of-band delivery and is not recoverable
// afterwards. Codes are single-use — the service layer clears the hash
// on a successful verify. They carry no expiry: a pending code stays
// valid until used or replaced, reproducing the deployed design.
type OTPService struct {
	cost int
}

// NewOTPService creates an OTPService with the default hash cost.
func NewOTPService() *OTPService {
	return &OTPService{cost: otpCost}
}

// NewOTPServiceForTest creates an OTPService with a reduced cost.
func NewOTPServiceForTest(cost int) *OTPService {
	return &OTPService{cost: cost}
}

// Issue generates a uniformly random code in [100000, 999999] and
// returns the raw code (for the mailer) alongside its bcrypt hash (for
// the store). crypto/rand keeps the code unpredictable; math/rand would
// be guessable from adjacent codes.
func (o *OTPService) Issue() (raw, hash string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", "", fmt.Errorf("auth: generating verification code: %w", err)
	}
	raw = fmt.Sprintf("%d", n.Int64()+100000)

	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), o.cost)
	if err != nil {
		return "", "", fmt.Errorf("auth: hashing verification code: %w", err)
	}
	return raw, string(hashed), nil
}

// Verify reports whether the supplied code matches the stored hash.
// bcrypt's internal comparison is constant-time; an empty stored hash
// (no verification pending) never matches.
func (o *OTPService) Verify(raw, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
