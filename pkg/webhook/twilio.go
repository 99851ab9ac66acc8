package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature checks an X-Twilio-Signature header: HMAC-SHA1 over
// the full request URL followed by every form parameter in key order, each as
// key then value, base64-encoded. Comparison is constant-time.
func ValidateTwilioSignature(authToken, requestURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(requestURL)
	for _, key := range keys {
		for _, value := range form[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
