package tracking

import (
	"strings"

	"github.com/pixrelay/pixrelay/internal/models"
)

// Default values substituted for attribution fields the checkout did not
// supply. utm.id has no semantic default and stays empty.
const (
	DefaultRef      = "default_ref"
	DefaultSrc      = "default_src"
	DefaultSck      = "default_sck"
	DefaultSource   = "default_source"
	DefaultMedium   = "default_medium"
	DefaultCampaign = "default_campaign"
	DefaultTerm     = "default_term"
	DefaultContent  = "default_content"
)

// Normalize turns a possibly-partial tracking payload into a fully-populated
// record. It is total (a nil input yields the all-defaults record) and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw *models.TrackingRecord) models.TrackingRecord {
	if raw == nil {
		raw = &models.TrackingRecord{}
	}

	return models.TrackingRecord{
		Ref: orDefault(raw.Ref, DefaultRef),
		Src: orDefault(raw.Src, DefaultSrc),
		Sck: orDefault(raw.Sck, DefaultSck),
		UTM: models.UTM{
			Source:   orDefault(raw.UTM.Source, DefaultSource),
			Medium:   orDefault(raw.UTM.Medium, DefaultMedium),
			Campaign: orDefault(raw.UTM.Campaign, DefaultCampaign),
			ID:       orDefault(raw.UTM.ID, ""),
			Term:     orDefault(raw.UTM.Term, DefaultTerm),
			Content:  orDefault(raw.UTM.Content, DefaultContent),
		},
	}
}

// orDefault treats empty strings and the literal "null" (as produced by some
// checkout frontends serializing absent values) as missing.
func orDefault(value, def string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return def
	}
	return trimmed
}
