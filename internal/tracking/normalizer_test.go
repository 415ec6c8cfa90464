package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pixrelay/pixrelay/internal/models"
)

func TestNormalize_NilInput(t *testing.T) {
	record := Normalize(nil)

	assert.Equal(t, DefaultRef, record.Ref)
	assert.Equal(t, DefaultSrc, record.Src)
	assert.Equal(t, DefaultSck, record.Sck)
	assert.Equal(t, DefaultSource, record.UTM.Source)
	assert.Equal(t, DefaultMedium, record.UTM.Medium)
	assert.Equal(t, DefaultCampaign, record.UTM.Campaign)
	assert.Equal(t, "", record.UTM.ID)
	assert.Equal(t, DefaultTerm, record.UTM.Term)
	assert.Equal(t, DefaultContent, record.UTM.Content)
}

func TestNormalize_FillsMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		input    *models.TrackingRecord
		expected models.TrackingRecord
	}{
		{
			name:  "empty input gets all defaults",
			input: &models.TrackingRecord{},
			expected: models.TrackingRecord{
				Ref: DefaultRef,
				Src: DefaultSrc,
				Sck: DefaultSck,
				UTM: models.UTM{
					Source:   DefaultSource,
					Medium:   DefaultMedium,
					Campaign: DefaultCampaign,
					Term:     DefaultTerm,
					Content:  DefaultContent,
				},
			},
		},
		{
			name: "partial input keeps supplied values",
			input: &models.TrackingRecord{
				Ref: "aff-42",
				UTM: models.UTM{Source: "fb", Campaign: "spring"},
			},
			expected: models.TrackingRecord{
				Ref: "aff-42",
				Src: DefaultSrc,
				Sck: DefaultSck,
				UTM: models.UTM{
					Source:   "fb",
					Medium:   DefaultMedium,
					Campaign: "spring",
					Term:     DefaultTerm,
					Content:  DefaultContent,
				},
			},
		},
		{
			name: "literal null strings treated as missing",
			input: &models.TrackingRecord{
				Ref: "null",
				Src: "NULL",
				UTM: models.UTM{Source: "null", ID: "null"},
			},
			expected: models.TrackingRecord{
				Ref: DefaultRef,
				Src: DefaultSrc,
				Sck: DefaultSck,
				UTM: models.UTM{
					Source:   DefaultSource,
					Medium:   DefaultMedium,
					Campaign: DefaultCampaign,
					ID:       "",
					Term:     DefaultTerm,
					Content:  DefaultContent,
				},
			},
		},
		{
			name: "whitespace-only values treated as missing",
			input: &models.TrackingRecord{
				Sck: "   ",
				UTM: models.UTM{Medium: " \t"},
			},
			expected: models.TrackingRecord{
				Ref: DefaultRef,
				Src: DefaultSrc,
				Sck: DefaultSck,
				UTM: models.UTM{
					Source:   DefaultSource,
					Medium:   DefaultMedium,
					Campaign: DefaultCampaign,
					Term:     DefaultTerm,
					Content:  DefaultContent,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []*models.TrackingRecord{
		nil,
		{},
		{Ref: "aff-1", UTM: models.UTM{Source: "google", ID: "gid-9"}},
		{Ref: "null", Sck: "click-1"},
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(&once)
		assert.Equal(t, once, twice)
	}
}
