// Package extract turns raw OCR text from supplier listing captures into a
// structured Supplier record. Extraction is pure and total: unparseable or
// missing regions leave the corresponding field unset, never an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/aliscan/aliscan-cli/internal/model"
)

// deliveryWindow is the character radius searched around a delivery keyword
// for a percentage. A global first-match would pick up unrelated percentages
// elsewhere in the capture.
const deliveryWindow = 250

// certContextWindow is the radius within which a certification mention needs
// a generic certification keyword, so the bare letters "CE" inside unrelated
// words never count.
const certContextWindow = 200

const maxNameLen = 60

// imageSeparatorRe matches the "----- IMAGE n -----" markers inserted between
// capture blocks for human debugging. They carry no meaning for extraction.
var imageSeparatorRe = regexp.MustCompile(`(?m)^\s*-{3,}\s*IMAGE\s*\d+\s*-{3,}\s*$`)

var (
	companyNameRe = regexp.MustCompile(`(?i)[\p{L}\p{N}][\p{L}\p{N}&().,'’\- ]{0,70}?(?:Co\.?\s*,?\s*Ltd\.?|Company\s+Limited|Manufactur\w*|International|Industr\w*)`)
	coLtdTailRe   = regexp.MustCompile(`^[\s,]*(?:Co\.?\s*,?\s*Ltd\.?|Company\s+Limited)`)
	leadNoiseRe   = regexp.MustCompile(`^[^\p{L}\p{N}]+`)

	ratingSlashRe = regexp.MustCompile(`(\d(?:[.,]\d{1,2})?)\s*/\s*5\b`)
	ratingParenRe = regexp.MustCompile(`(\d[.,]\d{1,2})\s*\(\s*(\d[\d .,]*?)\s*(?:avis|reviews?|evaluations?|ratings?)?\s*\)`)
	// OCR often renders the star glyph as "¥" or a bare capital "Y"; matched
	// against the original text so a lowercase French "y" never qualifies.
	ratingGlyphRe = regexp.MustCompile(`(?:[★☆¥]|\bY\b)\s{0,2}(\d(?:[.,]\d{1,2})?)\b|(\d(?:[.,]\d{1,2})?)\b\s{0,2}[★☆¥]`)

	reviewsRe = regexp.MustCompile(`(\d[\d .,]*?)\s*(?:avis|reviews?|evaluations?)\b`)
	soldRe    = regexp.MustCompile(`(\d[\d .,]*?)\s*\+?\s*(?:vendus?|sold|ventes|orders?|commandes)\b`)

	percentRe  = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{1,2})?)\s*%`)
	responseRe = regexp.MustCompile(`(?:[≤<]\s*)?(\d{1,2})\s*(?:h\b|heures?\b|hours?\b|hrs?\b)`)

	trailingCodeRe = regexp.MustCompile(`,\s*([a-z]{2})\s*$`)

	yearsPlatformRe = regexp.MustCompile(`(\d{1,2})\s*(?:ans?|years?|yrs?)\s+(?:sur|on)\s+\p{L}+`)
	yearsPlainRe    = regexp.MustCompile(`(\d{1,2})\s*(?:ans?|years?|yrs?)\b`)
	foundedRe       = regexp.MustCompile(`(?:fondee?(?:\s+en)?|creee?(?:\s+en)?|etablie?(?:\s+en)?|founded(?:\s+in)?|established(?:\s+in)?|since|depuis)\s*:?\s*((?:19|20)\d{2})`)

	factoryRe    = regexp.MustCompile(`(\d[\d .,]*?)\s*(?:m²|m2\b|metres? carres?|square met(?:er|re)s?|sqm\b)`)
	employeesRe  = regexp.MustCompile(`(\d[\d .,]*?)\s*\+?\s*(?:employes?|employees?|workers?|staff|personnes)\b`)
	employeesRe2 = regexp.MustCompile(`(?:employes?|employees?|staff)\s*:?\s*(\d[\d .,]*)`)

	isoCertRe = regexp.MustCompile(`\biso[\s-]?(\d{4,5}(?::\d{4})?)\b`)
)

// certNames are the recognized certification types, scanned in this order so
// output stays deterministic. ISO subtypes are handled separately.
var certNames = []string{"CE", "RoHS", "FCC", "BSCI", "SGS", "TUV", "CQC", "Certificate of Conformity"}

// countryNames maps accepted ISO-2 codes to their display labels.
var countryNames = map[string]string{
	"CN": "Chine", "HK": "Hong Kong", "TW": "Taïwan", "VN": "Vietnam",
	"IN": "Inde", "TH": "Thaïlande", "ID": "Indonésie", "MY": "Malaisie",
	"KR": "Corée du Sud", "JP": "Japon", "PK": "Pakistan", "BD": "Bangladesh",
	"TR": "Turquie", "US": "États-Unis", "GB": "Royaume-Uni", "CA": "Canada",
	"MX": "Mexique", "BR": "Brésil", "AE": "Émirats arabes unis",
	"SA": "Arabie saoudite", "EG": "Égypte", "MA": "Maroc", "SN": "Sénégal",
	"CI": "Côte d'Ivoire", "NG": "Nigéria", "ZA": "Afrique du Sud",
	"PL": "Pologne", "NL": "Pays-Bas", "BE": "Belgique", "CH": "Suisse",
	"UA": "Ukraine", "AU": "Australie",
}

// rejectedCodes are two-letter sequences OCR frequently captures in place of
// a country: language names. They are never accepted as a country code.
var rejectedCodes = map[string]bool{
	"EN": true, "FR": true, "ES": true, "DE": true, "IT": true, "PT": true,
}

// Extractor extracts Supplier fields from OCR text using a configurable
// keyword vocabulary.
type Extractor struct {
	vocab Vocabulary

	shopRatingRe   *regexp.Regexp
	shopReviewsRe  *regexp.Regexp
	shopReviewsRe2 *regexp.Regexp
	locatedRes     []*regexp.Regexp
	certBareRes    map[string]*regexp.Regexp
	certNumRes     map[string]*regexp.Regexp
}

// New creates an Extractor for the given vocabulary. Pass DefaultVocabulary()
// for the built-in French/English phrase set.
func New(vocab Vocabulary) *Extractor {
	e := &Extractor{vocab: vocab}

	quals := alternation(vocab.ShopQualifiers)
	e.shopRatingRe = regexp.MustCompile(`(?:` + quals + `)[^\n\d%]{0,40}?(\d[.,]\d{1,2})(?:\s*/\s*5)?`)
	e.shopReviewsRe = regexp.MustCompile(`(?:` + quals + `)[^\n]{0,40}?(\d[\d .,]*?)\s*(?:avis|reviews?|evaluations?)\b`)
	e.shopReviewsRe2 = regexp.MustCompile(`(\d[\d .,]*?)\s*(?:avis|reviews?|evaluations?)[^\n]{0,30}(?:` + quals + `)`)

	for _, phrase := range vocab.LocatedPhrases {
		e.locatedRes = append(e.locatedRes,
			regexp.MustCompile(regexp.QuoteMeta(phrase)+`[\s:]{1,5}([a-z]{2})\b`))
	}

	e.certBareRes = make(map[string]*regexp.Regexp, len(certNames))
	e.certNumRes = make(map[string]*regexp.Regexp, len(certNames))
	for _, name := range certNames {
		folded := Fold(name)
		e.certBareRes[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(folded) + `\b`)
		e.certNumRes[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(folded) + `[\s:#-]{0,3}(\d[a-z0-9-]{4,})\b`)
	}

	return e
}

// Extract parses raw OCR text into a Supplier record. It never fails; fields
// that cannot be located are left unset.
func (e *Extractor) Extract(raw string) *model.Supplier {
	s := &model.Supplier{}
	if strings.TrimSpace(raw) == "" {
		return s
	}

	clean := imageSeparatorRe.ReplaceAllString(raw, "")
	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	folded := Fold(clean)

	if containsAny(folded, e.vocab.VerifiedKw) {
		v := true
		s.Verified = &v
	}
	s.TradeAssurance = containsAny(folded, e.vocab.GuaranteeKw)

	s.Name = e.extractName(clean, folded)
	e.extractShopMetrics(s, folded)
	e.extractRating(s, clean, folded)
	e.extractCounts(s, folded)
	s.DeliveryRate = e.extractDeliveryRate(folded)
	s.ResponseHours = e.extractResponseTime(folded)
	e.extractCountry(s, folded)
	s.CompanyType = e.extractCompanyType(folded)
	e.extractAge(s, folded)
	e.extractScale(s, folded)
	s.Certifications = e.extractCertifications(clean, folded)
	s.Personalization = e.extractPersonalization(clean, folded)

	return s
}

// extractName tries three strategies in order; the first that yields a
// plausible name wins, with no merging between strategies.
func (e *Extractor) extractName(clean, folded string) string {
	// (a) phrase ending in a company suffix.
	if loc := companyNameRe.FindStringIndex(clean); loc != nil {
		match := clean[loc[0]:loc[1]]
		// OCR often splits "... Manufacturing" from a following "Co., Ltd.".
		if tail := coLtdTailRe.FindString(clean[loc[1]:]); tail != "" {
			match += tail
		}
		if name := cleanName(match); plausibleName(name) {
			return name
		}
	}

	// (b) the line immediately after a "verified" badge line: OCR frequently
	// splits the badge from the supplier name.
	cleanLines := strings.Split(clean, "\n")
	foldedLines := strings.Split(folded, "\n")
	n := len(cleanLines)
	if len(foldedLines) < n {
		n = len(foldedLines)
	}
	for i := 0; i < n; i++ {
		if !containsAny(foldedLines[i], e.vocab.VerifiedKw) {
			continue
		}
		for j := i + 1; j < n; j++ {
			if strings.TrimSpace(cleanLines[j]) == "" {
				continue
			}
			if name := cleanName(cleanLines[j]); plausibleName(name) {
				return name
			}
			break
		}
	}

	// (c) any line containing a manufacturing/trading keyword.
	for i := 0; i < n; i++ {
		if containsAny(foldedLines[i], e.vocab.ManufacturingKw) || containsAny(foldedLines[i], e.vocab.TradingKw) {
			if name := cleanName(cleanLines[i]); plausibleName(name) {
				return name
			}
		}
	}

	return ""
}

// extractRating resolves the product-level rating: "X/5" first, then
// "X (N)" which also carries the review count, then a star-glyph artifact.
// Matches qualified by a shop keyword are skipped so shop ratings never
// leak into the product rating.
func (e *Extractor) extractRating(s *model.Supplier, clean, folded string) {
	for _, m := range ratingSlashRe.FindAllStringSubmatchIndex(folded, -1) {
		if e.shopQualified(folded, m[0]) {
			continue
		}
		if v, ok := parseRating(folded[m[2]:m[3]]); ok {
			s.Rating = &v
			return
		}
	}

	for _, m := range ratingParenRe.FindAllStringSubmatchIndex(folded, -1) {
		if e.shopQualified(folded, m[0]) {
			continue
		}
		v, ok := parseRating(folded[m[2]:m[3]])
		if !ok {
			continue
		}
		s.Rating = &v
		if c, ok := parseCount(folded[m[4]:m[5]]); ok {
			s.Reviews = &c
		}
		return
	}

	if m := ratingGlyphRe.FindStringSubmatch(clean); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, ok := parseRating(raw); ok {
			s.Rating = &v
		}
	}
}

// extractCounts fills the product review and sold counts, skipping
// shop-qualified matches.
func (e *Extractor) extractCounts(s *model.Supplier, folded string) {
	if s.Reviews == nil {
		for _, m := range reviewsRe.FindAllStringSubmatchIndex(folded, -1) {
			if e.shopQualified(folded, m[0]) {
				continue
			}
			if c, ok := parseCount(folded[m[2]:m[3]]); ok {
				s.Reviews = &c
				break
			}
		}
	}

	for _, m := range soldRe.FindAllStringSubmatchIndex(folded, -1) {
		if c, ok := parseCount(folded[m[2]:m[3]]); ok {
			s.Sold = &c
			break
		}
	}
}

// extractShopMetrics fills the storefront-level rating and review count.
// Only patterns explicitly qualified by a shop keyword are considered.
func (e *Extractor) extractShopMetrics(s *model.Supplier, folded string) {
	if m := e.shopRatingRe.FindStringSubmatch(folded); m != nil {
		if v, ok := parseRating(m[1]); ok {
			s.ShopRating = &v
		}
	}
	if m := e.shopReviewsRe.FindStringSubmatch(folded); m != nil {
		if c, ok := parseCount(m[1]); ok {
			s.ShopReviews = &c
		}
	}
	if s.ShopReviews == nil {
		if m := e.shopReviewsRe2.FindStringSubmatch(folded); m != nil {
			if c, ok := parseCount(m[1]); ok {
				s.ShopReviews = &c
			}
		}
	}
}

// shopQualified reports whether the 40 characters before pos contain a shop
// qualifier, marking the match as storefront-level.
func (e *Extractor) shopQualified(folded string, pos int) bool {
	start := pos - 40
	if start < 0 {
		start = 0
	}
	return containsAny(folded[clampRuneStart(folded, start):pos], e.vocab.ShopQualifiers)
}

// extractDeliveryRate searches a bounded window around each delivery keyword
// for a percentage, falling back to a window near a company-profile heading.
func (e *Extractor) extractDeliveryRate(folded string) *float64 {
	if v := e.percentNear(folded, e.vocab.DeliveryKeywords); v != nil {
		return v
	}
	return e.percentNear(folded, e.vocab.ProfileHeadings)
}

func (e *Extractor) percentNear(folded string, keywords []string) *float64 {
	for _, kw := range keywords {
		for _, idx := range occurrences(folded, kw) {
			window := windowAround(folded, idx, len(kw), deliveryWindow)
			if m := percentRe.FindStringSubmatch(window); m != nil {
				if v, ok := parseDecimal(m[1]); ok && v >= 0 && v <= 100 {
					return &v
				}
			}
		}
	}
	return nil
}

// extractResponseTime looks for an hour figure near a response keyword.
func (e *Extractor) extractResponseTime(folded string) *float64 {
	for _, kw := range e.vocab.ResponseKeywords {
		for _, idx := range occurrences(folded, kw) {
			window := windowAround(folded, idx, len(kw), 80)
			if m := responseRe.FindStringSubmatch(window); m != nil {
				if v, ok := parseDecimal(m[1]); ok && v > 0 {
					return &v
				}
			}
		}
	}
	return nil
}

// extractCountry accepts a two-letter code only adjacent to located/situated
// phrasing or as a trailing ",XX" suffix, and rejects codes that are really
// language names captured by OCR.
func (e *Extractor) extractCountry(s *model.Supplier, folded string) {
	for _, re := range e.locatedRes {
		if m := re.FindStringSubmatch(folded); m != nil {
			if code, label, ok := resolveCountry(m[1]); ok {
				s.CountryCode, s.Country = code, label
				return
			}
		}
	}
	for _, line := range strings.Split(folded, "\n") {
		if m := trailingCodeRe.FindStringSubmatch(strings.TrimRight(line, " \t")); m != nil {
			if code, label, ok := resolveCountry(m[1]); ok {
				s.CountryCode, s.Country = code, label
				return
			}
		}
	}
}

func resolveCountry(raw string) (code, label string, ok bool) {
	code = strings.ToUpper(raw)
	if rejectedCodes[code] {
		return "", "", false
	}
	label, ok = countryNames[code]
	if !ok {
		return "", "", false
	}
	return code, label, true
}

func (e *Extractor) extractCompanyType(folded string) string {
	if containsAny(folded, e.vocab.TradingKw) {
		return model.CompanyTypeTrading
	}
	if containsAny(folded, e.vocab.ManufacturingKw) {
		return model.CompanyTypeFabricant
	}
	return ""
}

// extractAge fills years on platform and founding year.
func (e *Extractor) extractAge(s *model.Supplier, folded string) {
	if m := yearsPlatformRe.FindStringSubmatch(folded); m != nil {
		if n, ok := parseCount(m[1]); ok {
			s.YearsActive = &n
		}
	} else if m := yearsPlainRe.FindStringSubmatch(folded); m != nil {
		if n, ok := parseCount(m[1]); ok {
			s.YearsActive = &n
		}
	}

	if m := foundedRe.FindStringSubmatch(folded); m != nil {
		if n, ok := parseCount(m[1]); ok {
			s.FoundedYear = &n
		}
	}
}

// extractScale fills factory area and employee count.
func (e *Extractor) extractScale(s *model.Supplier, folded string) {
	if m := factoryRe.FindStringSubmatch(folded); m != nil {
		if v, ok := parseCount(m[1]); ok && v > 0 {
			f := float64(v)
			s.FactorySizeM2 = &f
		}
	}

	if m := employeesRe.FindStringSubmatch(folded); m != nil {
		if n, ok := parseCount(m[1]); ok && n > 0 {
			s.Employees = &n
		}
	} else if m := employeesRe2.FindStringSubmatch(folded); m != nil {
		if n, ok := parseCount(m[1]); ok && n > 0 {
			s.Employees = &n
		}
	}
}

// extractCertifications detects known certification names, requiring a
// generic certification keyword within certContextWindow of each mention.
// When both a bare mention and one with a serial exist for the same type,
// only the serial entry is kept.
func (e *Extractor) extractCertifications(clean, folded string) []model.Certification {
	byType := make(map[string]model.Certification)
	var order []string

	add := func(typ, number string) {
		existing, seen := byType[typ]
		if !seen {
			order = append(order, typ)
			byType[typ] = model.Certification{Type: typ, Number: number}
			return
		}
		if existing.Number == "" && number != "" {
			byType[typ] = model.Certification{Type: typ, Number: number}
		}
	}

	for _, name := range certNames {
		if m := e.certNumRes[name].FindStringSubmatchIndex(folded); m != nil && e.certContextNear(folded, m[0]) {
			add(name, strings.ToUpper(folded[m[2]:m[3]]))
			continue
		}
		if loc := e.certBareRes[name].FindStringIndex(folded); loc != nil && e.certContextNear(folded, loc[0]) {
			add(name, "")
		}
	}

	for _, m := range isoCertRe.FindAllStringSubmatchIndex(folded, -1) {
		if !e.certContextNear(folded, m[0]) {
			continue
		}
		add("ISO "+folded[m[2]:m[3]], "")
	}

	if len(order) == 0 {
		return nil
	}
	certs := make([]model.Certification, 0, len(order))
	for _, typ := range order {
		certs = append(certs, byType[typ])
	}
	return certs
}

func (e *Extractor) certContextNear(folded string, pos int) bool {
	window := windowAround(folded, pos, 0, certContextWindow)
	return containsAny(window, e.vocab.CertContext)
}

// extractPersonalization keeps only lines genuinely about customization
// services, joined into one free-text description.
func (e *Extractor) extractPersonalization(clean, folded string) string {
	cleanLines := strings.Split(clean, "\n")
	foldedLines := strings.Split(folded, "\n")
	n := len(cleanLines)
	if len(foldedLines) < n {
		n = len(foldedLines)
	}

	var kept []string
	for i := 0; i < n; i++ {
		if !containsAny(foldedLines[i], e.vocab.PersonalizationKw) {
			continue
		}
		line := strings.TrimSpace(cleanLines[i])
		if line == "" || utf8.RuneCountInString(line) > 160 {
			continue
		}
		kept = append(kept, line)
	}

	joined := strings.Join(kept, "; ")
	if utf8.RuneCountInString(joined) > 300 {
		joined = string([]rune(joined)[:300])
	}
	return joined
}

// helpers

// Fold lowercases and strips diacritics so keyword matching survives OCR's
// inconsistent accent rendering.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = leadNoiseRe.ReplaceAllString(s, "")
	for strings.HasSuffix(s, "…") || strings.HasSuffix(s, "..") {
		s = strings.TrimSuffix(s, "…")
		s = strings.TrimSuffix(s, ".")
		s = strings.TrimRight(s, " ")
	}
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxNameLen {
		s = string([]rune(s)[:maxNameLen])
	}
	return strings.TrimSpace(s)
}

// plausibleName guards against promoting OCR junk lines into a name.
func plausibleName(s string) bool {
	if utf8.RuneCountInString(s) < 3 {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(quoted, "|")
}

func occurrences(s, sub string) []int {
	var idxs []int
	for start := 0; ; {
		i := strings.Index(s[start:], sub)
		if i < 0 {
			return idxs
		}
		idxs = append(idxs, start+i)
		start += i + len(sub)
	}
}

func windowAround(s string, pos, width, radius int) string {
	lo := pos - radius
	if lo < 0 {
		lo = 0
	}
	hi := pos + width + radius
	if hi > len(s) {
		hi = len(s)
	}
	return s[clampRuneStart(s, lo):clampRuneStart(s, hi)]
}

// clampRuneStart moves a byte offset back to the nearest rune boundary.
func clampRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func parseDecimal(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRating parses and clamps a rating to [0,5].
func parseRating(raw string) (float64, bool) {
	v, ok := parseDecimal(raw)
	if !ok || v < 0 {
		return 0, false
	}
	if v > 5 {
		v = 5
	}
	return v, true
}

// parseCount parses a count that may carry OCR thousand separators
// (spaces, commas, dots).
func parseCount(raw string) (int, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 9 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
