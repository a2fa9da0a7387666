package crypto

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "accesslab"

// GenerateTOTPSecret returns a fresh base32 TOTP secret bound to the account
// name. The secret is not persisted here; enrollment commits it only after
// the holder proves a valid code (see authn.EnableMFA).
func GenerateTOTPSecret(accountName string) (string, error) {
	accountName = strings.TrimSpace(accountName)
	if accountName == "" {
		return "", errors.New("account name is required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// VerifyTOTP checks a time-based one-time code against the secret at the
// given instant, tolerating the configured number of 30-second steps of
// clock skew in either direction.
func VerifyTOTP(code, secret string, at time.Time, skewSteps uint) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      skewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
