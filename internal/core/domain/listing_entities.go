package domain

import (
	"strconv"
	"time"
)

// ListingStatus describes the transition that produced the current stored row.
type ListingStatus string

const (
	StatusNew       ListingStatus = "new"
	StatusUpdated   ListingStatus = "updated"
	StatusUnchanged ListingStatus = "unchanged"
	StatusOffMarket ListingStatus = "off-market"
	StatusRelisted  ListingStatus = "relisted"
)

// OnMarketStatuses are the statuses the off-market transition is allowed to
// overwrite. A row parked in an administrative status keeps it.
var OnMarketStatuses = []ListingStatus{StatusNew, StatusUpdated, StatusUnchanged, StatusRelisted}

// RawListing is the attribute bag produced by one successful detail-page parse.
// Immutable after creation.
type RawListing struct {
	ListingID      string  `json:"listing_id"`
	URL            string  `json:"url"`
	Address        string  `json:"address"`
	Suburb         string  `json:"suburb"`
	State          string  `json:"state"`
	Postcode       string  `json:"postcode"`
	PropertyType   string  `json:"property_type"`
	RentPerWeek    float64 `json:"rent_pw"`
	Bond           float64 `json:"bond"`
	Bedrooms       int     `json:"bedrooms"`
	Bathrooms      int     `json:"bathrooms"`
	ParkingSpaces  int     `json:"parking_spaces"`
	BedroomDisplay string  `json:"bedroom_display"`

	// AvailableDate is nil when the listing is available immediately.
	AvailableDate   *time.Time `json:"available_date"`
	InspectionTimes []string   `json:"inspection_times"`

	AgencyName        string `json:"agency_name"`
	AgentName         string `json:"agent_name"`
	AgentPhone        string `json:"agent_phone"`
	AgentEmail        string `json:"agent_email"`
	AgentProfileURL   string `json:"agent_profile_url"`
	AgencyLogoURL     string `json:"agency_logo_url"`
	EnquiryFormAction string `json:"enquiry_form_action"`

	Headline    string   `json:"headline"`
	Description string   `json:"description"`
	FeatureTags []string `json:"feature_tags"`
	Images      []string `json:"images"`
	CoverImage  string   `json:"cover_image"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Geohash   string  `json:"geohash"`
}

// SnapshotRecord is the unit written to the crawl snapshot: one parsed listing
// plus its classified feature flags. Keyed by ListingID, one per run.
type SnapshotRecord struct {
	RawListing
	Classified ClassifiedFeatures `json:"classified_features"`
}

// HasValidID reports whether the externally assigned identifier is the
// numeric-like key the store requires.
func (r SnapshotRecord) HasValidID() bool {
	if r.ListingID == "" {
		return false
	}
	_, err := strconv.ParseInt(r.ListingID, 10, 64)
	return err == nil
}

// ChangeKey is the field subset used for update-vs-unchanged detection.
type ChangeKey struct {
	RentPerWeek     float64
	AvailableDate   *time.Time
	InspectionTimes []string
	Postcode        string
	Headline        string
}

// ChangeKey extracts the change-detection subset from a snapshot record.
func (r SnapshotRecord) ChangeKey() ChangeKey {
	return ChangeKey{
		RentPerWeek:     r.RentPerWeek,
		AvailableDate:   r.AvailableDate,
		InspectionTimes: r.InspectionTimes,
		Postcode:        r.Postcode,
		Headline:        r.Headline,
	}
}

// Equal compares two change keys field by field. A nil available date is only
// equal to another nil one, so a date appearing or disappearing counts as a
// change.
func (k ChangeKey) Equal(other ChangeKey) bool {
	if k.RentPerWeek != other.RentPerWeek ||
		k.Postcode != other.Postcode ||
		k.Headline != other.Headline {
		return false
	}
	if (k.AvailableDate == nil) != (other.AvailableDate == nil) {
		return false
	}
	if k.AvailableDate != nil && !k.AvailableDate.Equal(*other.AvailableDate) {
		return false
	}
	if len(k.InspectionTimes) != len(other.InspectionTimes) {
		return false
	}
	for i := range k.InspectionTimes {
		if k.InspectionTimes[i] != other.InspectionTimes[i] {
			return false
		}
	}
	return true
}

// StoredListing is the per-row view the reconciler loads from the store:
// identifier, change-detection fields and the current lifecycle state.
type StoredListing struct {
	ListingID string
	Key       ChangeKey
	IsActive  bool
	Status    ListingStatus
}

// ListingMutation is one row of the merged updated/relisted write path.
type ListingMutation struct {
	Record SnapshotRecord
	Status ListingStatus
}
