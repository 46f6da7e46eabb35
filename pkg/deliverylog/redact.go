package deliverylog

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// defaultSensitiveParams are query parameters that carry credentials in
// provider URLs. Transport errors quote the request URL, so they end up in
// error text.
var defaultSensitiveParams = []string{
	"access_token", "sign", "signature", "secret", "key", "token", "password", "accesskeyid",
}

// Redactor masks credential values in free text before it is stored.
type Redactor struct {
	re *regexp.Regexp
}

// NewRedactor masks the default parameters plus extra.
func NewRedactor(extra ...string) *Redactor {
	names := make([]string, 0, len(defaultSensitiveParams)+len(extra))
	for _, n := range append(append([]string{}, defaultSensitiveParams...), extra...) {
		names = append(names, regexp.QuoteMeta(strings.ToLower(n)))
	}
	return &Redactor{
		re: regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)=([^&\s"']+)`),
	}
}

// Redact replaces the value of every sensitive name=value pair.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	return r.re.ReplaceAllString(s, "${1}="+redacted)
}
