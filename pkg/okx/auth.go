package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

// Signer produces the OK-ACCESS request signature for private v5 endpoints.
// The live engine only touches public market data; these primitives exist so
// a real execution gateway can be dropped in without reworking the client.
type Signer struct {
	apiKey     string
	secretKey  string
	passphrase string
}

func NewSigner(apiKey, secretKey, passphrase string) *Signer {
	return &Signer{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
	}
}

// Sign computes Base64(HMAC-SHA256(timestamp + method + path + body)).
func (s *Signer) Sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(s.secretKey))
	h.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// AddAuthHeaders attaches the standard OK-ACCESS headers to a request.
func (s *Signer) AddAuthHeaders(req *http.Request, method, path, body string) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	req.Header.Set("OK-ACCESS-KEY", s.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", s.Sign(timestamp, method, path, body))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", s.passphrase)
}
