package bypass

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Signal is the part of an HTTP exchange the detectors look at.
type Signal struct {
	StatusCode int
	// FinalURL is the URL of the last response after redirects.
	FinalURL *url.URL
	Headers  http.Header
	Body     []byte
}

// Detector examines a response to determine if a bot protection mechanism
// blocked, challenged or interposed on the request.
type Detector func(sig Signal) (detected bool, source string)

// Detection sources reported by DefaultDetectors.
const (
	SourceSorryPage   = "Google unusual-traffic page"
	SourceRecaptcha   = "reCAPTCHA"
	SourceConsentWall = "Google consent wall"
	SourceCloudflare  = "Cloudflare"
)

// DefaultDetectors returns the detectors relevant to search result pages,
// most specific first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectSorryPage,
		detectRecaptcha,
		detectConsentWall,
		detectCloudflare,
	}
}

// Analyze runs sig through detectors and reports the first one that fires.
func Analyze(sig Signal, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(sig); detected {
			return true, source
		}
	}
	return false, ""
}

func hostIs(u *url.URL, prefix string) bool {
	return u != nil && strings.HasPrefix(strings.ToLower(u.Hostname()), prefix)
}

// detectSorryPage catches the /sorry/index interstitial Google serves
// (usually with 429) when it rate-limits a client.
func detectSorryPage(sig Signal) (bool, string) {
	if sig.FinalURL != nil && strings.HasPrefix(sig.FinalURL.Path, "/sorry/") {
		return true, SourceSorryPage
	}
	if sig.StatusCode == http.StatusTooManyRequests || sig.StatusCode == http.StatusServiceUnavailable {
		if bytes.Contains(sig.Body, []byte("unusual traffic from your computer network")) ||
			bytes.Contains(sig.Body, []byte("/sorry/index")) {
			return true, SourceSorryPage
		}
	}
	return false, ""
}

func detectRecaptcha(sig Signal) (bool, string) {
	if sig.StatusCode == http.StatusOK {
		return false, ""
	}
	if bytes.Contains(sig.Body, []byte("g-recaptcha")) ||
		bytes.Contains(sig.Body, []byte("www.google.com/recaptcha/api.js")) {
		return true, SourceRecaptcha
	}
	return false, ""
}

// detectConsentWall fires when the request was redirected to the cookie
// consent host. The page is a 200 with no results on it.
func detectConsentWall(sig Signal) (bool, string) {
	if hostIs(sig.FinalURL, "consent.") {
		return true, SourceConsentWall
	}
	return false, ""
}

func detectCloudflare(sig Signal) (bool, string) {
	if sig.StatusCode != http.StatusForbidden && sig.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(sig.Headers.Get("Server")), "cloudflare") {
		return true, SourceCloudflare
	}
	if bytes.Contains(sig.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(sig.Body, []byte("cf-turnstile")) {
		return true, SourceCloudflare
	}
	return false, ""
}
