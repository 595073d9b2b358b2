package indico

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"indibot/internal/timewindow"
)

// Credentials are the optional global API credentials. An empty APIKey
// disables authentication entirely; an empty Secret disables request signing.
type Credentials struct {
	APIKey string
	Secret string
}

// Worst-case batch size per export request.
const fetchLimit = "100"

// Timestamp format the upstream expects for absolute from/to bounds.
const absoluteTimeFormat = "2006-01-02T15:04"

// buildParams assembles the query parameters for one category export.
//
// Forward windows ask the server for [now, now+delta] using the relative
// "now"/delta spellings. Backward windows pin an absolute one-hour range
// ending at now+delta and force UTC so the server interprets the absolute
// timestamps unambiguously.
func buildParams(now time.Time, delta timewindow.Delta, debug bool) map[string]string {
	params := map[string]string{
		"from":  "now",
		"to":    delta.String(),
		"limit": fetchLimit,
	}
	if debug {
		params["nc"] = "yes"
	}

	if delta.Negative {
		fromDate := now.Add(delta.Duration()).UTC()
		params["from"] = fromDate.Add(-time.Hour).Format(absoluteTimeFormat)
		params["to"] = fromDate.Format(absoluteTimeFormat)
		params["tz"] = "UTC"
	}
	return params
}

// signParams appends authentication parameters in place.
//
// The signature is an HMAC-SHA1 over "/{path}?{query}" where the query is
// built from every parameter present so far, sorted case-insensitively by
// name and URL-encoded. The signature parameter itself is excluded from the
// signed data and appended afterwards, so signing is deterministic given
// (path, params, secret, timestamp).
func signParams(path string, params map[string]string, creds Credentials, timestamp time.Time) {
	if creds.APIKey == "" {
		return
	}
	params["apikey"] = creds.APIKey
	if creds.Secret == "" {
		return
	}
	params["timestamp"] = strconv.FormatInt(timestamp.Unix(), 10)

	payload := "/" + path + "?" + encodeParams(params)
	mac := hmac.New(sha1.New, []byte(creds.Secret))
	mac.Write([]byte(payload))
	params["signature"] = hex.EncodeToString(mac.Sum(nil))
}

// encodeParams URL-encodes the parameters sorted case-insensitively by name.
func encodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
