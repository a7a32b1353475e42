package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// RedactOptions configures what Logger scrubs.
//
// MaskHeaders adds header names whose values are replaced with
// "[REDACTED]". Authorization, Cookie, Set-Cookie and X-Admin-Token are
// always masked. MaskParams adds query parameter names whose values are
// masked; token, key and secret are always masked.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

// Redactor scrubs secrets from strings and headers before they reach logs.
// It never sees request or response bodies.
type Redactor struct {
	headers map[string]struct{}
	params  *regexp.Regexp
}

var (
	// Telegram bot tokens look like "<bot id>:<35 url-safe chars>".
	botTokenRE = regexp.MustCompile(`\d{5,12}:[A-Za-z0-9_-]{30,}`)
	emailRE    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
)

// NewRedactor builds a Redactor from opts.
func NewRedactor(opts RedactOptions) *Redactor {
	headers := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-admin-token": {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			headers[h] = struct{}{}
		}
	}

	names := []string{"token", "key", "secret"}
	for _, p := range opts.MaskParams {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, regexp.QuoteMeta(p))
		}
	}
	params := regexp.MustCompile(`(?i)(^|[&;])(` + strings.Join(names, "|") + `)=[^&;]*`)

	return &Redactor{headers: headers, params: params}
}

// String scrubs bot tokens, e-mail addresses and masked query parameters.
// Tokens go first so the looser patterns never see them.
func (r *Redactor) String(s string) string {
	if s == "" {
		return s
	}
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = r.params.ReplaceAllString(s, "${1}${2}=[REDACTED]")
	return s
}

// Headers returns a flattened copy of h with masked headers replaced and the
// remaining values scrubbed.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.headers[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.String(strings.Join(vv, ", "))
	}
	return out
}
