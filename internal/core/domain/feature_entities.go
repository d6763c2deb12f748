package domain

// FeatureFlag is the closed three-state value stored for each amenity.
// Unknown means absence of evidence, never a negative fact.
type FeatureFlag string

const (
	FlagYes     FeatureFlag = "yes"
	FlagNo      FeatureFlag = "no"
	FlagUnknown FeatureFlag = "unknown"
)

// TierResult is the four-valued outcome of a keyword-tier check. Optional only
// occurs on the furnished text check and is collapsed to a FeatureFlag by
// FlagFromTier before being stored.
type TierResult string

const (
	TierYes      TierResult = "yes"
	TierNo       TierResult = "no"
	TierOptional TierResult = "optional"
	TierUnknown  TierResult = "unknown"
)

// FlagFromTier maps a keyword-tier result onto the stored three-state flag.
// "Partly furnished" style matches (optional) count as furniture present.
func FlagFromTier(t TierResult) FeatureFlag {
	switch t {
	case TierYes, TierOptional:
		return FlagYes
	case TierNo:
		return FlagNo
	default:
		return FlagUnknown
	}
}

// Feature names, matching the keyword dictionary keys and snapshot columns.
const (
	FeatureFurnished       = "furnished"
	FeatureAirConditioning = "air_conditioning"
	FeatureLaundry         = "laundry"
	FeatureDishwasher      = "dishwasher"
	FeatureGasCooking      = "gas_cooking"
	FeatureIntercom        = "intercom"
	FeatureStudy           = "study"
	FeatureBalcony         = "balcony"
)

// FeatureNames lists every classified feature. The classifier must emit a flag
// for each of these on every record.
var FeatureNames = []string{
	FeatureFurnished,
	FeatureAirConditioning,
	FeatureLaundry,
	FeatureDishwasher,
	FeatureGasCooking,
	FeatureIntercom,
	FeatureStudy,
	FeatureBalcony,
}

// ClassifiedFeatures maps each feature name to its three-state flag.
type ClassifiedFeatures map[string]FeatureFlag

// NewUnclassifiedFeatures returns a map with every feature set to unknown.
func NewUnclassifiedFeatures() ClassifiedFeatures {
	flags := make(ClassifiedFeatures, len(FeatureNames))
	for _, name := range FeatureNames {
		flags[name] = FlagUnknown
	}
	return flags
}

// Complete reports whether every known feature carries a valid flag.
func (c ClassifiedFeatures) Complete() bool {
	for _, name := range FeatureNames {
		switch c[name] {
		case FlagYes, FlagNo, FlagUnknown:
		default:
			return false
		}
	}
	return true
}
