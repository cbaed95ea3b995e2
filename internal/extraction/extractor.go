// File: internal/extraction/extractor.go

// Package extraction recovers a structured record from the free-form text the
// remote browsing agent reports back. The primary pass parses the exact
// "KEY: value" grammar the task script requests; per-field fallback heuristics
// cover agents that ignored the grammar.
package extraction

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/nullwave7/gatescout/api/schemas"
)

// Structured report keys, matching the grammar the task composer requests.
const (
	keyCheckoutURL      = "CHECKOUT_URL"
	keyPaymentURL       = "PAYMENT_URL"
	keyPaymentGateway   = "PAYMENT_GATEWAY"
	keyPaymentProviders = "PAYMENT_PROVIDERS"
	keyProductAdded     = "PRODUCT_ADDED"
	keyWebsiteName      = "WEBSITE_NAME"
	keyStepsCompleted   = "STEPS_COMPLETED"
	keyIssues           = "ISSUES_ENCOUNTERED"
	keyScreenshotReady  = "SCREENSHOT_READY"
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
	domainPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9][a-z0-9-]*\.)+[a-z]{2,}\b`)
)

// Extractor parses agent output into ExtractionRecords. It never returns an
// error and never panics; in the worst case the record carries only the raw
// response text.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor builds an Extractor. A nil logger is replaced with a no-op one.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger.Named("extraction")}
}

var _ schemas.ResultExtractor = (*Extractor)(nil)

// Extract parses rawText into a structured record. originURL anchors the
// host-difference signal when ranking fallback URL candidates.
func (e *Extractor) Extract(rawText, originURL string) (rec schemas.ExtractionRecord) {
	rec = schemas.ExtractionRecord{RawResponse: rawText}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered panic during extraction, returning raw record.",
				zap.Any("panic", r))
			rec = schemas.ExtractionRecord{RawResponse: rawText}
		}
	}()

	e.primaryPass(&rec, rawText)
	e.fallbackPass(&rec, rawText, originURL)
	return rec
}

// primaryPass fills record fields from exact "KEY: value" lines. The first
// occurrence of a key wins; later duplicates are ignored.
func (e *Extractor) primaryPass(rec *schemas.ExtractionRecord, rawText string) {
	for _, rawLine := range strings.Split(rawText, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(rawLine, "\r"))
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = cleanValue(value)
		if value == "" {
			continue
		}

		switch key {
		case keyCheckoutURL:
			if rec.CheckoutURL == "" && isValidURL(value) {
				rec.CheckoutURL = value
			}
		case keyPaymentURL:
			if rec.PaymentURL == "" && isValidURL(value) {
				rec.PaymentURL = value
			}
		case keyPaymentGateway:
			if rec.PaymentGateway == "" {
				rec.PaymentGateway = value
			}
		case keyPaymentProviders:
			if len(rec.PaymentProviders) == 0 {
				rec.PaymentProviders = splitProviders(value)
			}
		case keyProductAdded:
			if rec.ProductAdded == "" {
				rec.ProductAdded = value
			}
		case keyWebsiteName:
			if rec.WebsiteName == "" {
				rec.WebsiteName = value
			}
		case keyStepsCompleted:
			if rec.StepsCompleted == "" {
				rec.StepsCompleted = value
			}
		case keyIssues:
			if rec.IssuesEncountered == "" {
				rec.IssuesEncountered = value
			}
		case keyScreenshotReady:
			rec.ScreenshotReady = rec.ScreenshotReady || isAffirmative(value)
		}
	}
}

// fallbackPass fills whatever the primary pass left empty, one heuristic per
// field.
func (e *Extractor) fallbackPass(rec *schemas.ExtractionRecord, rawText, originURL string) {
	var candidates []string
	if rec.PaymentURL == "" || rec.CheckoutURL == "" {
		candidates = urlCandidates(rawText)
	}
	if rec.PaymentURL == "" {
		rec.PaymentURL = bestURL(candidates, originURL)
	}
	if rec.CheckoutURL == "" {
		rec.CheckoutURL = bestURL(candidates, originURL)
	}

	if len(rec.PaymentProviders) == 0 {
		rec.PaymentProviders = scanBrands(rawText)
	}

	if rec.WebsiteName == "" {
		rec.WebsiteName = websiteName(rec.CheckoutURL, rec.PaymentURL, rawText)
	}

	if rec.ProductAdded == "" {
		rec.ProductAdded = productFromLines(rawText)
	}
}

// urlCandidates returns every well-formed URL in the text, deduplicated in
// first-seen order. Trailing sentence punctuation is stripped from each match.
func urlCandidates(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(m, ".,;:!?")
		if !isValidURL(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// bestURL picks the highest scoring candidate. A lexicon keyword match scores
// higher than a host differing from the origin; candidates tie-break on
// first-seen order because only a strictly better score displaces the leader.
func bestURL(candidates []string, originURL string) string {
	if len(candidates) == 0 {
		return ""
	}

	originHost := registrableHost(originURL)
	best := ""
	bestScore := -1
	for _, c := range candidates {
		score := 0
		lc := strings.ToLower(c)
		for _, kw := range urlKeywords {
			if strings.Contains(lc, kw) {
				score += 2
				break
			}
		}
		if originHost != "" {
			if h := registrableHost(c); h != "" && h != originHost {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// registrableHost reduces a URL to its eTLD+1 so shop.example.dk and
// www.example.dk count as the same site. Falls back to the raw hostname when
// the public suffix list cannot place it.
func registrableHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld
	}
	return host
}

// scanBrands reports every lexicon brand present in the text, in lexicon
// order.
func scanBrands(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, brand := range brandLexicon {
		if strings.Contains(lower, strings.ToLower(brand)) {
			out = append(out, brand)
		}
	}
	return out
}

// websiteName derives the store name from the best known URL's host, trying
// the checkout URL before the payment URL, and finally from any domain-shaped
// token in the text.
func websiteName(checkoutURL, paymentURL, rawText string) string {
	for _, raw := range []string{checkoutURL, paymentURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	if m := domainPattern.FindString(rawText); m != "" {
		return strings.TrimPrefix(strings.ToLower(m), "www.")
	}
	return ""
}

// productFromLines hunts for an added-to-cart sentence and pulls a quoted
// product name out of it. Best effort; returns "" when nothing matches.
func productFromLines(rawText string) string {
	for _, rawLine := range strings.Split(rawText, "\n") {
		line := strings.TrimSpace(rawLine)
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "add") {
			continue
		}
		if !strings.Contains(lower, "cart") && !strings.Contains(lower, "basket") {
			continue
		}
		if name := quotedSpan(line); name != "" {
			return name
		}
	}
	return ""
}

// quotedSpan returns the first single- or double-quoted span in the line.
func quotedSpan(line string) string {
	for _, quote := range []string{`"`, "'", "“", "‘"} {
		start := strings.Index(line, quote)
		if start < 0 {
			continue
		}
		closer := quote
		switch quote {
		case "“":
			closer = "”"
		case "‘":
			closer = "’"
		}
		rest := line[start+len(quote):]
		end := strings.Index(rest, closer)
		if end > 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return ""
}

// splitProviders splits a comma-separated provider list, trimming entries and
// dropping duplicates case-insensitively while preserving order.
func splitProviders(value string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(value, ",") {
		p := strings.TrimSpace(part)
		if p == "" || isAbsent(p) {
			continue
		}
		lower := strings.ToLower(p)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, p)
	}
	return out
}

// cleanValue trims a reported value and treats the grammar's absence markers
// as empty.
func cleanValue(value string) string {
	v := strings.TrimSpace(value)
	if isAbsent(v) {
		return ""
	}
	return v
}

func isAbsent(v string) bool {
	switch strings.ToUpper(v) {
	case "NONE", "N/A", "UNKNOWN", "-":
		return true
	}
	return false
}

func isAffirmative(v string) bool {
	switch strings.ToUpper(v) {
	case "YES", "TRUE", "1", "Y":
		return true
	}
	return false
}

// isValidURL reports whether s is an absolute http(s) URL with a host.
func isValidURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
