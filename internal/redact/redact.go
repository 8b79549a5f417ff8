// Package redact scrubs credentials from log lines and diagnostic output
package redact

import (
	"regexp"
	"strings"
)

const mask = "[REDACTED]"

// rule pairs a secret pattern with its replacement template. Templates keep
// the leading label so the redacted line still reads naturally.
type rule struct {
	re   *regexp.Regexp
	repl string
}

var rules = []rule{
	// labelled keys: api_key=..., "apiKey": "..."
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey)(["\s:=]+)["']?[a-zA-Z0-9_-]{20,}["']?`), "${1}${2}" + mask},
	// Google keys, bare or as a query parameter
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), mask},
	{regexp.MustCompile(`(?i)([?&]key=)[^&\s"]+`), "${1}" + mask},
	{regexp.MustCompile(`(?i)(token|bearer)(["\s:=]+)["']?[a-zA-Z0-9_.-]{20,}["']?`), "${1}${2}" + mask},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)(["\s:=]+)["']?[^"'\s]{4,}["']?`), "${1}${2}" + mask},
	{regexp.MustCompile(`(?i)(secret|private[_-]?key)(["\s:=]+)["']?[a-zA-Z0-9_/+=.-]{20,}["']?`), "${1}${2}" + mask},
	// OpenAI style keys
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), mask},
	// JWTs
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), mask},
}

var (
	sensitiveEnv = []string{"PASSWORD", "SECRET", "TOKEN", "KEY", "CREDENTIAL", "API_", "AUTH_", "PRIVATE"}
	homeDirs     = regexp.MustCompile(`/(Users|home)/[^/]+/`)
)

// RedactSecrets replaces anything that looks like a credential in text
func RedactSecrets(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return text
}

// ContainsSecret reports whether RedactSecrets would change text
func ContainsSecret(text string) bool {
	for _, r := range rules {
		if r.re.MatchString(text) {
			return true
		}
	}
	return false
}

// RedactEnv masks the values of KEY=VALUE pairs whose key names a secret.
// Entries without "=" pass through.
func RedactEnv(env []string) []string {
	out := make([]string, len(env))
	for i, e := range env {
		key, _, ok := strings.Cut(e, "=")
		if ok && isSensitive(key) {
			e = key + "=" + mask
		}
		out[i] = e
	}
	return out
}

func isSensitive(key string) bool {
	key = strings.ToUpper(key)
	for _, s := range sensitiveEnv {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// RedactPath hides the user name in home directory paths
func RedactPath(path string) string {
	return homeDirs.ReplaceAllString(path, "/$1/[USER]/")
}
