package model

import (
	"fmt"
	"time"
)

// ReliabilityLabel is the qualitative band for a reliability score.
type ReliabilityLabel string

const (
	LabelRisque     ReliabilityLabel = "Risque"
	LabelMoyen      ReliabilityLabel = "Moyen"
	LabelFiable     ReliabilityLabel = "Fiable"
	LabelTresFiable ReliabilityLabel = "Très fiable"
)

// CompanyType classifies a supplier's business model.
const (
	CompanyTypeTrading   = "Trading Company"
	CompanyTypeFabricant = "Fabricant"
)

// Certification is a single detected certification. Number is empty for bare
// mentions; entries with a number supersede bare entries of the same type.
type Certification struct {
	Type   string `json:"type"`
	Number string `json:"number,omitempty"`
}

// Supplier is the structured record extracted from OCR text. Every field is
// optional: absent values stay zero/nil rather than erroring. Pointer fields
// distinguish "not found" from a genuine zero.
type Supplier struct {
	Name           string   `json:"name,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`        // product rating, [0,5]
	Reviews        *int     `json:"reviews,omitempty"`       // product review count
	Sold           *int     `json:"sold,omitempty"`          // units sold
	DeliveryRate   *float64 `json:"delivery_rate,omitempty"` // on-time delivery percent, [0,100]
	ResponseHours  *float64 `json:"response_hours,omitempty"`
	Country        string   `json:"country,omitempty"`      // display label, e.g. "Chine"
	CountryCode    string   `json:"country_code,omitempty"` // ISO-2
	Verified       *bool    `json:"verified,omitempty"`     // nil = not determined
	TradeAssurance bool     `json:"trade_assurance"`
	CompanyType    string   `json:"company_type,omitempty"`
	YearsActive    *int     `json:"years_active,omitempty"`
	FoundedYear    *int     `json:"founded_year,omitempty"`
	FactorySizeM2  *float64 `json:"factory_size_m2,omitempty"`
	Employees      *int     `json:"employees,omitempty"`

	Certifications []Certification `json:"certifications,omitempty"`

	// Shop (storefront) metrics are distinct from the product-level rating
	// and review count above and must never be conflated with them.
	ShopRating  *float64 `json:"shop_rating,omitempty"`
	ShopReviews *int     `json:"shop_reviews,omitempty"`

	Personalization string `json:"personalization,omitempty"`
}

// ResponseTime renders the normalized response time ("≤2h") or "" when absent.
func (s *Supplier) ResponseTime() string {
	if s.ResponseHours == nil {
		return ""
	}
	return fmt.Sprintf("≤%gh", *s.ResponseHours)
}

// DeliveryRateString renders the delivery rate as a percentage string ("97.3%").
func (s *Supplier) DeliveryRateString() string {
	if s.DeliveryRate == nil {
		return ""
	}
	return fmt.Sprintf("%g%%", *s.DeliveryRate)
}

// ReliabilityResult is the scorer output: an integer score in [0,100], a
// qualitative label and the ordered contribution breakdown. Immutable and
// fully determined by the Supplier it was derived from.
type ReliabilityResult struct {
	Score   int              `json:"score"`
	Label   ReliabilityLabel `json:"label"`
	Reasons []string         `json:"reasons"`
}

// RawCapture is an ordered sequence of OCR text blocks, one per screenshot.
type RawCapture struct {
	Blocks []string `json:"blocks"`
}

// AnalysisStatus represents the state of a persisted analysis.
type AnalysisStatus string

const (
	AnalysisStatusComplete AnalysisStatus = "complete"
	AnalysisStatusRejected AnalysisStatus = "rejected" // mixed-vendor batch
)

// Analysis is a persisted snapshot of one extraction+scoring pass.
type Analysis struct {
	ID        string             `json:"id"`
	TextHash  string             `json:"text_hash"`
	Capture   RawCapture         `json:"capture"`
	Supplier  *Supplier          `json:"supplier,omitempty"`
	Result    *ReliabilityResult `json:"result,omitempty"`
	Status    AnalysisStatus     `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// TrackingEvent is one checkpoint in a package's journey.
type TrackingEvent struct {
	Time        time.Time `json:"time"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description"`
}

// Tracking is a normalized package tracking snapshot.
type Tracking struct {
	Number    string          `json:"number"`
	Carrier   string          `json:"carrier,omitempty"`
	Status    string          `json:"status"`
	Events    []TrackingEvent `json:"events,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}
