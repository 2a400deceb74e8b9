package usecase

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

// Tracking parameters stripped during URL canonicalization.
var droppedQueryParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {}, "_hsenc": {}, "_hsmi": {},
}

// CanonicalID derives the fusion key for an identifier. HTTP(S) URLs are
// normalized; everything else is lower-cased and trimmed. The function
// never fails: unparseable input falls back to the raw string.
func CanonicalID(idOrURL string) string {
	s := strings.TrimSpace(idOrURL)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if canonical := canonicalizeURL(s); canonical != "" {
			return canonical
		}
	}
	return strings.ToLower(s)
}

func canonicalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")

	if u.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if idx := strings.IndexByte(pair, '='); idx >= 0 {
				key = pair[:idx]
			}
			if _, drop := droppedQueryParams[strings.ToLower(key)]; drop {
				continue
			}
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	return u.String()
}

// contentHash keys URL-less evidence so duplicates across channels still
// merge during fusion.
func contentHash(text string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(strings.ToLower(text))))
	return "sha1:" + hex.EncodeToString(sum[:])
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
