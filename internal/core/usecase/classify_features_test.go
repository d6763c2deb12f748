package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-ingest-service/internal/configs"
	"rental-ingest-service/internal/core/domain"
)

func newTestClassifier(t *testing.T) *ClassifyFeaturesUseCase {
	t.Helper()
	keywords, err := configs.LoadKeywords("")
	require.NoError(t, err)
	return NewClassifyFeaturesUseCase(keywords)
}

func TestClassifyFeatures_PositiveTagMatch(t *testing.T) {
	uc := newTestClassifier(t)

	flags := uc.Execute([]string{"Dishwasher", "Internal Laundry", "Balcony"}, "", "")

	assert.Equal(t, domain.FlagYes, flags[domain.FeatureDishwasher])
	assert.Equal(t, domain.FlagYes, flags[domain.FeatureLaundry])
	assert.Equal(t, domain.FlagYes, flags[domain.FeatureBalcony])
	assert.Equal(t, domain.FlagUnknown, flags[domain.FeatureGasCooking])
}

func TestClassifyFeatures_NegativeBeatsPositive(t *testing.T) {
	uc := newTestClassifier(t)

	// Both tiers match; the negative one must win.
	flags := uc.Execute([]string{"furnished", "unfurnished"}, "", "")

	assert.Equal(t, domain.FlagNo, flags[domain.FeatureFurnished])
}

func TestClassifyFeatures_AbsenceIsUnknownNotNo(t *testing.T) {
	uc := newTestClassifier(t)

	flags := uc.Execute(nil, "", "")

	for _, name := range domain.FeatureNames {
		assert.Equal(t, domain.FlagUnknown, flags[name], "feature %s", name)
	}
	assert.True(t, flags.Complete())
}

func TestClassifyFeatures_FurnishedTextFallback(t *testing.T) {
	uc := newTestClassifier(t)

	tests := []struct {
		name        string
		headline    string
		description string
		want        domain.FeatureFlag
	}{
		{
			name:     "positive in headline",
			headline: "Fully furnished city apartment",
			want:     domain.FlagYes,
		},
		{
			name:        "negative in description",
			description: "This home is offered unfurnished.",
			want:        domain.FlagNo,
		},
		{
			name:        "optional counts as yes",
			description: "Can be partly furnished on request",
			want:        domain.FlagYes,
		},
		{
			name:        "negative beats optional in text",
			description: "Not furnished, though it was partly furnished before",
			want:        domain.FlagNo,
		},
		{
			name: "no evidence stays unknown",
			want: domain.FlagUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := uc.Execute(nil, tt.headline, tt.description)
			assert.Equal(t, tt.want, flags[domain.FeatureFurnished])
		})
	}
}

func TestClassifyFeatures_ListWinsOverText(t *testing.T) {
	uc := newTestClassifier(t)

	// The tag list already settles furnished; the contradictory text must
	// not be consulted.
	flags := uc.Execute([]string{"furnished"}, "", "absolutely unfurnished")

	assert.Equal(t, domain.FlagYes, flags[domain.FeatureFurnished])
}

func TestClassifyFeatures_OnlyFurnishedUsesText(t *testing.T) {
	uc := newTestClassifier(t)

	flags := uc.Execute(nil, "Spacious home with dishwasher and balcony", "gas cooking throughout")

	assert.Equal(t, domain.FlagUnknown, flags[domain.FeatureDishwasher])
	assert.Equal(t, domain.FlagUnknown, flags[domain.FeatureBalcony])
	assert.Equal(t, domain.FlagUnknown, flags[domain.FeatureGasCooking])
}

func TestClassifyFeatures_TagMatchingIsCaseInsensitive(t *testing.T) {
	uc := newTestClassifier(t)

	flags := uc.Execute([]string{"  AIR CONDITIONING  "}, "", "")

	assert.Equal(t, domain.FlagYes, flags[domain.FeatureAirConditioning])
}
