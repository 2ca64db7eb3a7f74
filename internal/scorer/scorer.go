package scorer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aliscan/aliscan-cli/internal/model"
)

// Scorer computes a 0-100 reliability score for an extracted supplier.
// The current year is injected so founding-year age never depends on the
// wall clock.
type Scorer struct {
	cfg  Config
	year int
}

// New creates a Scorer. currentYear is used to turn a founding year into a
// company age.
func New(cfg Config, currentYear int) *Scorer {
	return &Scorer{cfg: cfg, year: currentYear}
}

// Label maps a final score to its display label.
func (c Config) Label(score int) model.ReliabilityLabel {
	switch {
	case score >= c.TresFiableMin:
		return model.LabelTresFiable
	case score >= c.FiableMin:
		return model.LabelFiable
	case score >= c.MoyenMin:
		return model.LabelMoyen
	default:
		return model.LabelRisque
	}
}

// Score evaluates every contribution in a fixed order and returns the
// rounded, clamped total with one reason line per contribution. The shop
// review line is emitted only when a shop review count was extracted.
func (s *Scorer) Score(sup *model.Supplier) model.ReliabilityResult {
	var total float64
	var reasons []string

	// 1. Verified status.
	if sup.Verified != nil && *sup.Verified {
		total += s.cfg.VerifiedPoints
		reasons = append(reasons, "Fournisseur vérifié : +"+fmtPts(s.cfg.VerifiedPoints))
	} else {
		total += s.cfg.UnverifiedPoints
		reasons = append(reasons, "Statut vérifié non confirmé : +"+fmtPts(s.cfg.UnverifiedPoints))
	}

	// 2. Purchase guarantee.
	if sup.TradeAssurance {
		total += s.cfg.TradeAssurancePoints
		reasons = append(reasons, "Garantie d'achat (Trade Assurance) : +"+fmtPts(s.cfg.TradeAssurancePoints))
	} else {
		reasons = append(reasons, "Aucune garantie d'achat : +0")
	}

	// 3. Product review composite.
	reviewPts := s.reviewComposite(sup)
	total += reviewPts
	reasons = append(reasons, fmt.Sprintf("Avis et ventes produit : +%s/%s", fmtPts(reviewPts), fmtPts(s.cfg.ReviewsCap)))

	// 4. On-time delivery rate.
	if sup.DeliveryRate != nil {
		pts := tierPoints(s.cfg.DeliveryTiers, *sup.DeliveryRate, s.cfg.DeliveryFloorPoints)
		total += pts
		reasons = append(reasons, fmt.Sprintf("Taux de livraison %s : +%s", sup.DeliveryRateString(), fmtPts(pts)))
	} else {
		reasons = append(reasons, "Taux de livraison inconnu : +0")
	}

	// 5. Shop review volume.
	if sup.ShopReviews != nil && *sup.ShopReviews > 0 {
		pts := tierPoints(s.cfg.ShopReviewTiers, float64(*sup.ShopReviews), s.cfg.ShopReviewFloorPoints)
		total += pts
		reasons = append(reasons, fmt.Sprintf("Avis boutique (%d) : +%s", *sup.ShopReviews, fmtPts(pts)))
	}

	// 6. Certifications.
	if len(sup.Certifications) > 0 {
		total += s.cfg.CertificationPoints
		names := make([]string, 0, len(sup.Certifications))
		for _, c := range sup.Certifications {
			names = append(names, c.Type)
		}
		reasons = append(reasons, fmt.Sprintf("Certifications (%s) : +%s", strings.Join(names, ", "), fmtPts(s.cfg.CertificationPoints)))
	} else {
		reasons = append(reasons, "Aucune certification détectée : +0")
	}

	// 7. Response time.
	if sup.ResponseHours != nil {
		pts := responsePoints(s.cfg.ResponseTiers, *sup.ResponseHours)
		total += pts
		reasons = append(reasons, fmt.Sprintf("Temps de réponse %s : +%s", sup.ResponseTime(), fmtPts(pts)))
	} else {
		reasons = append(reasons, "Temps de réponse inconnu : +0")
	}

	// 8. Company profile composite.
	profilePts := s.profileComposite(sup)
	total += profilePts
	reasons = append(reasons, fmt.Sprintf("Ancienneté et taille de l'entreprise : +%s/%s", fmtPts(profilePts), fmtPts(s.cfg.ProfileCap)))

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.ReliabilityResult{
		Score:   score,
		Label:   s.cfg.Label(score),
		Reasons: reasons,
	}
}

// reviewComposite sums rating, review count, sold count, and the shop
// support bonus, capped at ReviewsCap. The shop bonus needs both a shop
// rating and at least one shop review.
func (s *Scorer) reviewComposite(sup *model.Supplier) float64 {
	var pts float64
	if sup.Rating != nil {
		pts += tierPoints(s.cfg.RatingTiers, *sup.Rating, 0)
	}
	if sup.Reviews != nil {
		pts += tierPoints(s.cfg.ReviewCountTiers, float64(*sup.Reviews), 0)
	}
	if sup.Sold != nil {
		pts += tierPoints(s.cfg.SoldTiers, float64(*sup.Sold), 0)
	}
	if sup.ShopRating != nil && sup.ShopReviews != nil && *sup.ShopReviews > 0 {
		pts += tierPoints(s.cfg.ShopSupportTiers, *sup.ShopRating, 0)
	}
	if pts > s.cfg.ReviewsCap {
		pts = s.cfg.ReviewsCap
	}
	return pts
}

// profileComposite sums company age, employee count, and factory area
// points, capped at ProfileCap. A founding year takes precedence over a
// stated platform age.
func (s *Scorer) profileComposite(sup *model.Supplier) float64 {
	var pts float64

	age, known := s.companyAge(sup)
	if known {
		pts += tierPoints(s.cfg.AgeTiers, float64(age), s.cfg.AgeFloor)
	}
	if sup.Employees != nil {
		pts += tierPoints(s.cfg.EmployeeTiers, float64(*sup.Employees), 0)
	}
	if sup.FactorySizeM2 != nil {
		pts += tierPoints(s.cfg.AreaTiers, *sup.FactorySizeM2, 0)
	}
	if pts > s.cfg.ProfileCap {
		pts = s.cfg.ProfileCap
	}
	return pts
}

func (s *Scorer) companyAge(sup *model.Supplier) (int, bool) {
	if sup.FoundedYear != nil {
		age := s.year - *sup.FoundedYear
		if age < 0 {
			age = 0
		}
		return age, true
	}
	if sup.YearsActive != nil {
		return *sup.YearsActive, true
	}
	return 0, false
}

func fmtPts(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
