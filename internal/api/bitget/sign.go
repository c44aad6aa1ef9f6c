package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

// Credentials authenticate private endpoints
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
}

func (c Credentials) empty() bool {
	return c.APIKey == "" || c.SecretKey == ""
}

// Sign computes base64(HMAC-SHA256(secret, timestamp+METHOD+requestPath+body)).
// requestPath includes the query string when there is one.
func Sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c Credentials) apply(req *http.Request, now time.Time, requestPath, body string) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)

	req.Header.Set("ACCESS-KEY", c.APIKey)
	req.Header.Set("ACCESS-SIGN", Sign(c.SecretKey, ts, req.Method, requestPath, body))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.Passphrase)
	req.Header.Set("locale", "en-US")
}
