package seen

import (
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"mkt_tok": {},
}

// CanonicalURL is the dedup key for a listing URL: scheme and host are
// lower-cased, the fragment and click-tracking parameters are dropped and
// the query is sorted. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if _, ok := trackingParams[lk]; ok || strings.HasPrefix(lk, "utm_") {
			q.Del(k)
		}
	}
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	return u.String()
}
