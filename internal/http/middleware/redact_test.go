package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestRedactQuery(t *testing.T) {
	raw := "id=12345&apiKey=0f8fad5b-d9cb-469f-a165-70867728950e&q=" +
		url.QueryEscape("look 0f8fad5b-d9cb-469f-a165-70867728950e here")
	got, err := url.ParseQuery(RedactQuery(raw))
	if err != nil {
		t.Fatalf("redacted query must stay parseable: %v", err)
	}
	if got.Get("id") != "12345" {
		t.Fatalf("id = %q; plain values must survive", got.Get("id"))
	}
	if got.Get("apiKey") != "****" {
		t.Fatalf("apiKey = %q; want fully masked", got.Get("apiKey"))
	}
	if q := got.Get("q"); strings.Contains(q, "70867728950e") || !strings.Contains(q, "[REDACTED:id]") {
		t.Fatalf("q = %q; uuid must be scrubbed", q)
	}
}

func TestRedactQuery_EmptyAndTokens(t *testing.T) {
	if RedactQuery("") != "" {
		t.Fatalf("empty query must stay empty")
	}
	raw := "note=123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw-x"
	if got := RedactQuery(raw); strings.Contains(got, "AAHdq") {
		t.Fatalf("bot token leaked: %q", got)
	}
	got, _ := url.ParseQuery(RedactQuery("token=abc"))
	if got.Get("token") != "****" {
		t.Fatalf("token = %q", got.Get("token"))
	}
}

func TestSafeHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Telegram-Bot-Api-Secret-Token", "s3cr3t")
	h.Set("X-Custom", "keep")
	h.Set("X-Trace", "id 0f8fad5b-d9cb-469f-a165-70867728950e")
	h.Set("X-Internal", "hide-me")

	out := SafeHeaders(h, headerMaskSet([]string{" X-Internal "}))
	if out["Authorization"] != "[REDACTED]" || out["X-Telegram-Bot-Api-Secret-Token"] != "[REDACTED]" {
		t.Fatalf("credential headers not masked: %v", out)
	}
	if out["X-Internal"] != "[REDACTED]" {
		t.Fatalf("extra mask not applied: %v", out)
	}
	if out["X-Custom"] != "keep" {
		t.Fatalf("X-Custom = %q", out["X-Custom"])
	}
	if out["X-Trace"] != "id [REDACTED:id]" {
		t.Fatalf("X-Trace = %q", out["X-Trace"])
	}
}
