package track

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/aliscan/aliscan-cli/internal/model"
)

// stages is the delivery progression, oldest first.
var stages = []struct {
	status      string
	location    string
	description string
}{
	{"Pris en charge", "Shenzhen, CN", "Colis pris en charge par le transporteur"},
	{"Parti du pays d'origine", "Guangzhou, CN", "Départ du centre de tri international"},
	{"En transit", "Dubai, AE", "Colis en transit vers le pays de destination"},
	{"Arrivé dans le pays de destination", "Abidjan, CI", "Arrivée au centre de distribution"},
	{"En cours de livraison", "Abidjan, CI", "Colis en cours de livraison"},
	{"Livré", "Abidjan, CI", "Colis livré au destinataire"},
}

// Simulator produces deterministic tracking snapshots derived from the
// number alone, for demos and installs without a tracking API key. The same
// number always yields the same progression.
type Simulator struct {
	now func() time.Time
}

// NewSimulator creates a Simulator using the wall clock.
func NewSimulator() *Simulator {
	return &Simulator{now: time.Now}
}

// Track derives a stable stage from the number hash and emits one event per
// completed stage, spaced two days apart.
func (s *Simulator) Track(_ context.Context, number string) (*model.Tracking, error) {
	number = strings.TrimSpace(number)
	if err := ValidateNumber(number); err != nil {
		return nil, err
	}

	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(number))) //nolint:errcheck
	stage := int(h.Sum32() % uint32(len(stages)))

	now := s.now().UTC()
	t := &model.Tracking{
		Number:    number,
		Carrier:   carrierFor(number),
		Status:    stages[stage].status,
		FetchedAt: now,
	}
	for i := 0; i <= stage; i++ {
		t.Events = append(t.Events, model.TrackingEvent{
			Time:        now.AddDate(0, 0, -2*(stage-i)),
			Location:    stages[i].location,
			Description: stages[i].description,
		})
	}
	return t, nil
}

// carrierFor guesses the carrier from well-known number prefixes.
func carrierFor(number string) string {
	upper := strings.ToUpper(number)
	switch {
	case strings.HasPrefix(upper, "1Z"):
		return "UPS"
	case strings.HasPrefix(upper, "LP") || strings.HasPrefix(upper, "CNB"):
		return "Cainiao"
	case strings.HasPrefix(upper, "YT"):
		return "Yanwen"
	case strings.HasSuffix(upper, "CN"):
		return "China Post"
	default:
		return "Standard"
	}
}
