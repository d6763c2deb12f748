package usecase

import (
	"strings"

	"rental-ingest-service/internal/configs"
	"rental-ingest-service/internal/core/domain"
)

// keywordTiers is the prepared, lower-cased form of one feature's dictionary.
// The list check matches whole tags against sets; the text check does
// substring scans, so it keeps ordered slices.
type keywordTiers struct {
	positiveSet map[string]struct{}
	negativeSet map[string]struct{}

	positive []string
	negative []string
	optional []string
}

// ClassifyFeaturesUseCase converts a listing's raw feature bag into the fixed
// three-state flag map. Two tiers: the site's own tag list first, then a
// free-text scan of headline plus description for the furnished flag only.
// Free text is considered too ambiguous for the other features; their recall
// is deliberately traded for precision.
type ClassifyFeaturesUseCase struct {
	keywords map[string]keywordTiers
}

// NewClassifyFeaturesUseCase prepares the keyword dictionaries for matching.
func NewClassifyFeaturesUseCase(cfg configs.KeywordConfig) *ClassifyFeaturesUseCase {
	prepared := make(map[string]keywordTiers, len(cfg))
	for feature, sets := range cfg {
		tiers := keywordTiers{
			positiveSet: make(map[string]struct{}, len(sets.Positive)),
			negativeSet: make(map[string]struct{}, len(sets.Negative)),
		}
		for _, kw := range sets.Positive {
			kw = strings.ToLower(strings.TrimSpace(kw))
			tiers.positiveSet[kw] = struct{}{}
			tiers.positive = append(tiers.positive, kw)
		}
		for _, kw := range sets.Negative {
			kw = strings.ToLower(strings.TrimSpace(kw))
			tiers.negativeSet[kw] = struct{}{}
			tiers.negative = append(tiers.negative, kw)
		}
		for _, kw := range sets.Optional {
			tiers.optional = append(tiers.optional, strings.ToLower(strings.TrimSpace(kw)))
		}
		prepared[feature] = tiers
	}
	return &ClassifyFeaturesUseCase{keywords: prepared}
}

// Execute classifies every known feature. Absence of evidence yields unknown,
// never no.
func (uc *ClassifyFeaturesUseCase) Execute(featureTags []string, headline, description string) domain.ClassifiedFeatures {
	flags := domain.NewUnclassifiedFeatures()

	tagSet := make(map[string]struct{}, len(featureTags))
	for _, tag := range featureTags {
		tagSet[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	for _, feature := range domain.FeatureNames {
		listResult := uc.checkList(feature, tagSet)

		if feature == domain.FeatureFurnished && listResult == domain.TierUnknown {
			textBlob := headline + " " + description
			flags[feature] = domain.FlagFromTier(uc.checkText(feature, textBlob))
			continue
		}
		flags[feature] = domain.FlagFromTier(listResult)
	}
	return flags
}

// checkList matches the site's own tags against the feature's keyword sets.
// An explicit negative tag wins over any positive one.
func (uc *ClassifyFeaturesUseCase) checkList(feature string, tagSet map[string]struct{}) domain.TierResult {
	tiers, ok := uc.keywords[feature]
	if !ok {
		return domain.TierUnknown
	}
	for tag := range tagSet {
		if _, hit := tiers.negativeSet[tag]; hit {
			return domain.TierNo
		}
	}
	for tag := range tagSet {
		if _, hit := tiers.positiveSet[tag]; hit {
			return domain.TierYes
		}
	}
	return domain.TierUnknown
}

// checkText scans free text with case-insensitive substring matching, in
// priority order negative > optional > positive.
func (uc *ClassifyFeaturesUseCase) checkText(feature, textBlob string) domain.TierResult {
	tiers, ok := uc.keywords[feature]
	if !ok || strings.TrimSpace(textBlob) == "" {
		return domain.TierUnknown
	}
	textLower := strings.ToLower(textBlob)

	for _, kw := range tiers.negative {
		if kw != "" && strings.Contains(textLower, kw) {
			return domain.TierNo
		}
	}
	for _, kw := range tiers.optional {
		if kw != "" && strings.Contains(textLower, kw) {
			return domain.TierOptional
		}
	}
	for _, kw := range tiers.positive {
		if kw != "" && strings.Contains(textLower, kw) {
			return domain.TierYes
		}
	}
	return domain.TierUnknown
}
