// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the scrubbing applied to access logs. Credentials travel
// in two places on this API: the Authorization header (bearer tokens) and
// the "apiKey" query parameter of the webhook and management routes. Both
// are masked before anything is logged; request bodies are never logged.
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/jotacemarin/botnorrea-v2/internal/sysutil"
)

// secretParams are query parameters whose values are masked.
var secretParams = map[string]struct{}{
	"apikey":       {},
	"api_key":      {},
	"token":        {},
	"secret_token": {},
}

// uuidRE matches UUID-shaped values, the format of issued api keys.
var uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)

// botTokenRE matches Telegram bot tokens ("<digits>:<35 chars>").
var botTokenRE = regexp.MustCompile(`\b\d{6,}:[A-Za-z0-9_-]{30,}\b`)

// RedactQuery masks secret parameters of a raw query string. Values of
// other parameters are scrubbed of UUIDs and bot tokens.
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redactValue(raw)
	}
	for k, vv := range values {
		_, secret := secretParams[strings.ToLower(k)]
		for i, v := range vv {
			if secret {
				vv[i] = sysutil.MaskSecret(v)
			} else {
				vv[i] = redactValue(v)
			}
		}
	}
	return values.Encode()
}

func redactValue(s string) string {
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:token]")
	return uuidRE.ReplaceAllString(s, "[REDACTED:id]")
}

func headerMaskSet(extra []string) map[string]struct{} {
	m := map[string]struct{}{
		"authorization":                   {},
		"cookie":                          {},
		"set-cookie":                      {},
		"x-telegram-bot-api-secret-token": {},
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return m
}

// SafeHeaders flattens h for logging, replacing masked headers entirely and
// scrubbing the rest.
func SafeHeaders(h http.Header, masked map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = redactValue(strings.Join(vv, ", "))
	}
	return out
}
