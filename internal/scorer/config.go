// Package scorer implements weighted supplier reliability scoring over
// extracted listing fields. Scoring is deterministic: the same supplier and
// config always produce the same score, label, and reason list.
package scorer

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Tier awards Points when the observed value is at least Min. Tiers are
// evaluated in order; the first that matches wins, so slices must be sorted
// by Min descending.
type Tier struct {
	Min    float64 `yaml:"min" mapstructure:"min"`
	Points float64 `yaml:"points" mapstructure:"points"`
}

// ResponseTier awards Points when the response time is at most MaxHours.
// Sorted by MaxHours ascending.
type ResponseTier struct {
	MaxHours float64 `yaml:"max_hours" mapstructure:"max_hours"`
	Points   float64 `yaml:"points" mapstructure:"points"`
}

// Config carries every weight and threshold of the reliability score.
type Config struct {
	VerifiedPoints   float64 `yaml:"verified_points" mapstructure:"verified_points"`
	UnverifiedPoints float64 `yaml:"unverified_points" mapstructure:"unverified_points"`

	TradeAssurancePoints float64 `yaml:"trade_assurance_points" mapstructure:"trade_assurance_points"`

	// Product review composite: rating + review count + sold count + shop
	// support bonus, capped at ReviewsCap.
	ReviewsCap       float64 `yaml:"reviews_cap" mapstructure:"reviews_cap"`
	RatingTiers      []Tier  `yaml:"rating_tiers" mapstructure:"rating_tiers"`
	ReviewCountTiers []Tier  `yaml:"review_count_tiers" mapstructure:"review_count_tiers"`
	SoldTiers        []Tier  `yaml:"sold_tiers" mapstructure:"sold_tiers"`
	ShopSupportTiers []Tier  `yaml:"shop_support_tiers" mapstructure:"shop_support_tiers"`

	DeliveryTiers       []Tier  `yaml:"delivery_tiers" mapstructure:"delivery_tiers"`
	DeliveryFloorPoints float64 `yaml:"delivery_floor_points" mapstructure:"delivery_floor_points"`

	ShopReviewTiers       []Tier  `yaml:"shop_review_tiers" mapstructure:"shop_review_tiers"`
	ShopReviewFloorPoints float64 `yaml:"shop_review_floor_points" mapstructure:"shop_review_floor_points"`

	CertificationPoints float64 `yaml:"certification_points" mapstructure:"certification_points"`

	ResponseTiers []ResponseTier `yaml:"response_tiers" mapstructure:"response_tiers"`

	// Company profile composite: age + employees + factory area, capped at
	// ProfileCap.
	ProfileCap    float64 `yaml:"profile_cap" mapstructure:"profile_cap"`
	AgeTiers      []Tier  `yaml:"age_tiers" mapstructure:"age_tiers"`
	AgeFloor      float64 `yaml:"age_floor" mapstructure:"age_floor"`
	EmployeeTiers []Tier  `yaml:"employee_tiers" mapstructure:"employee_tiers"`
	AreaTiers     []Tier  `yaml:"area_tiers" mapstructure:"area_tiers"`

	// Label thresholds on the final 0-100 score.
	TresFiableMin int `yaml:"tres_fiable_min" mapstructure:"tres_fiable_min"`
	FiableMin     int `yaml:"fiable_min" mapstructure:"fiable_min"`
	MoyenMin      int `yaml:"moyen_min" mapstructure:"moyen_min"`
}

// DefaultConfig returns the standard weighting. The contribution caps sum to
// 85, comfortably inside the 0-100 score range.
func DefaultConfig() Config {
	return Config{
		VerifiedPoints:   20,
		UnverifiedPoints: 5,

		TradeAssurancePoints: 18,

		ReviewsCap: 18,
		RatingTiers: []Tier{
			{Min: 4.8, Points: 10},
			{Min: 4.6, Points: 8},
			{Min: 4.4, Points: 6},
			{Min: 4.2, Points: 4},
			{Min: 4.0, Points: 2},
		},
		ReviewCountTiers: []Tier{
			{Min: 500, Points: 6},
			{Min: 200, Points: 5},
			{Min: 50, Points: 4},
			{Min: 10, Points: 2},
			{Min: 1, Points: 1},
		},
		SoldTiers: []Tier{
			{Min: 100, Points: 2},
			{Min: 20, Points: 1},
		},
		ShopSupportTiers: []Tier{
			{Min: 4.8, Points: 3},
			{Min: 4.5, Points: 2},
			{Min: 4.0, Points: 1},
		},

		DeliveryTiers: []Tier{
			{Min: 98, Points: 10},
			{Min: 95, Points: 8},
			{Min: 92, Points: 6},
			{Min: 90, Points: 4},
		},
		DeliveryFloorPoints: 2,

		ShopReviewTiers: []Tier{
			{Min: 1000, Points: 3},
			{Min: 200, Points: 2.5},
			{Min: 50, Points: 2},
			{Min: 10, Points: 1},
		},
		ShopReviewFloorPoints: 0.5,

		CertificationPoints: 3,

		ResponseTiers: []ResponseTier{
			{MaxHours: 2, Points: 3},
			{MaxHours: 3, Points: 2},
			{MaxHours: 6, Points: 1},
		},

		ProfileCap: 10,
		AgeTiers: []Tier{
			{Min: 10, Points: 5},
			{Min: 5, Points: 3},
			{Min: 2, Points: 2},
		},
		AgeFloor: 1,
		EmployeeTiers: []Tier{
			{Min: 300, Points: 3},
			{Min: 100, Points: 2},
			{Min: 20, Points: 1},
		},
		AreaTiers: []Tier{
			{Min: 10000, Points: 2},
			{Min: 2000, Points: 1},
		},

		TresFiableMin: 80,
		FiableMin:     60,
		MoyenMin:      40,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	if c.VerifiedPoints < c.UnverifiedPoints {
		errs = append(errs, "verified_points below unverified_points")
	}
	if c.ReviewsCap <= 0 {
		errs = append(errs, "reviews_cap must be positive")
	}
	if c.ProfileCap <= 0 {
		errs = append(errs, "profile_cap must be positive")
	}
	if !(c.TresFiableMin > c.FiableMin && c.FiableMin > c.MoyenMin && c.MoyenMin > 0) {
		errs = append(errs, "label thresholds must be strictly decreasing and positive")
	}
	for name, tiers := range map[string][]Tier{
		"rating_tiers":       c.RatingTiers,
		"review_count_tiers": c.ReviewCountTiers,
		"sold_tiers":         c.SoldTiers,
		"shop_support_tiers": c.ShopSupportTiers,
		"delivery_tiers":     c.DeliveryTiers,
		"shop_review_tiers":  c.ShopReviewTiers,
		"age_tiers":          c.AgeTiers,
		"employee_tiers":     c.EmployeeTiers,
		"area_tiers":         c.AreaTiers,
	} {
		for i := 1; i < len(tiers); i++ {
			if tiers[i].Min >= tiers[i-1].Min {
				errs = append(errs, name+" not sorted by min descending")
				break
			}
		}
	}
	for i := 1; i < len(c.ResponseTiers); i++ {
		if c.ResponseTiers[i].MaxHours <= c.ResponseTiers[i-1].MaxHours {
			errs = append(errs, "response_tiers not sorted by max_hours ascending")
			break
		}
	}

	if len(errs) > 0 {
		return eris.New("scorer: invalid config: " + strings.Join(errs, "; "))
	}
	return nil
}

// tierPoints returns the points of the first tier whose Min the value
// reaches, or floor when no tier matches.
func tierPoints(tiers []Tier, value, floor float64) float64 {
	for _, t := range tiers {
		if value >= t.Min {
			return t.Points
		}
	}
	return floor
}

func responsePoints(tiers []ResponseTier, hours float64) float64 {
	for _, t := range tiers {
		if hours <= t.MaxHours {
			return t.Points
		}
	}
	return 0
}
