package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sasToken builds a shared access signature authorizing requests against the
// given resource until expiry. The signature is an HMAC-SHA256 over the
// URL-encoded resource URI and the expiry timestamp.
func sasToken(cs *ConnectionString, resource string, expiry time.Time) string {
	encodedResource := url.QueryEscape(strings.ToLower(resource))
	expires := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, cs.SharedAccessKey)
	mac.Write([]byte(encodedResource + "\n" + expires))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s&skn=%s",
		encodedResource, url.QueryEscape(signature), expires, cs.SharedAccessKeyName)
}
