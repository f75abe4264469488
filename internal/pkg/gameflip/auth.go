package gameflip

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTP returns the one-time code for a base32 secret at t.
func TOTP(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(strings.TrimSpace(secret), t, totpOpts)
	if err != nil {
		return "", fmt.Errorf("gameflip: generate totp: %w", err)
	}
	return code, nil
}

// AuthHeader builds the Authorization value "GFAPI <key>:<totp>".
func AuthHeader(apiKey, apiSecret string, t time.Time) (string, error) {
	code, err := TOTP(apiSecret, t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GFAPI %s:%s", apiKey, code), nil
}
