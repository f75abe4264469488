package billing

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"
)

// VerifySellixSignature checks the hex HMAC-SHA512 of the raw body sent in
// the X-Sellix-Unescaped-Signature header.
func VerifySellixSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	return verifyHMAC(payload, decodedSig, []byte(secret), sha512.New)
}

// SignSellixPayload returns the signature Sellix would send for payload.
func SignSellixPayload(payload []byte, webhookSecret string) string {
	mac := hmac.New(sha512.New, []byte(strings.TrimSpace(webhookSecret)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
