package source

import "net/url"

var secretParams = []string{"key", "token"}

// redact masks credentials in a URL's query before it is logged or wrapped in an error.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Get(p) != "" {
			q.Set(p, "xxx")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
