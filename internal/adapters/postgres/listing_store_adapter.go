package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// ListingStoreAdapter persists listings in a single append-only table. Rows
// are never deleted; lifecycle is tracked through is_active and status.
type ListingStoreAdapter struct {
	pool *pgxpool.Pool
}

func NewListingStoreAdapter(pool *pgxpool.Pool) (*ListingStoreAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &ListingStoreAdapter{pool: pool}, nil
}

const createListingsTable = `
CREATE TABLE IF NOT EXISTS listings (
	listing_id          BIGINT PRIMARY KEY,
	url                 TEXT NOT NULL,
	address             TEXT NOT NULL DEFAULT '',
	suburb              TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL DEFAULT '',
	postcode            TEXT NOT NULL DEFAULT '',
	property_type       TEXT NOT NULL DEFAULT '',
	rent_pw             DOUBLE PRECISION NOT NULL DEFAULT 0,
	bond                DOUBLE PRECISION NOT NULL DEFAULT 0,
	bedrooms            INTEGER NOT NULL DEFAULT 0,
	bathrooms           INTEGER NOT NULL DEFAULT 0,
	parking_spaces      INTEGER NOT NULL DEFAULT 0,
	bedroom_display     TEXT NOT NULL DEFAULT '',
	available_date      TIMESTAMPTZ,
	inspection_times    TEXT[] NOT NULL DEFAULT '{}',
	agency_name         TEXT NOT NULL DEFAULT '',
	agent_name          TEXT NOT NULL DEFAULT '',
	agent_phone         TEXT NOT NULL DEFAULT '',
	agent_email         TEXT NOT NULL DEFAULT '',
	agent_profile_url   TEXT NOT NULL DEFAULT '',
	agency_logo_url     TEXT NOT NULL DEFAULT '',
	enquiry_form_action TEXT NOT NULL DEFAULT '',
	headline            TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	feature_tags        TEXT[] NOT NULL DEFAULT '{}',
	images              TEXT[] NOT NULL DEFAULT '{}',
	cover_image         TEXT NOT NULL DEFAULT '',
	latitude            DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude           DOUBLE PRECISION NOT NULL DEFAULT 0,
	geohash             TEXT NOT NULL DEFAULT '',
	features            JSONB NOT NULL DEFAULT '{}',
	is_active           BOOLEAN NOT NULL DEFAULT TRUE,
	status              TEXT NOT NULL,
	first_seen_at       TIMESTAMPTZ NOT NULL,
	last_seen_at        TIMESTAMPTZ NOT NULL,
	status_changed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_listings_is_active ON listings (is_active);
CREATE INDEX IF NOT EXISTS idx_listings_status ON listings (status);
`

// EnsureSchema creates the listings table and its indexes when absent.
func (a *ListingStoreAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, createListingsTable); err != nil {
		return fmt.Errorf("%w: ensuring listings schema: %v", domain.ErrStore, err)
	}
	return nil
}

// BeginRun opens the reconciliation transaction.
func (a *ListingStoreAdapter) BeginRun(ctx context.Context) (port.ReconcileTxPort, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", domain.ErrStore, err)
	}
	return &reconcileTx{tx: tx}, nil
}

type reconcileTx struct {
	tx pgx.Tx
}

// ListListings loads every row with the change-detection field subset.
func (t *reconcileTx) ListListings(ctx context.Context) ([]domain.StoredListing, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT listing_id, rent_pw, available_date, inspection_times,
		       postcode, headline, is_active, status
		FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing stored rows: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var stored []domain.StoredListing
	for rows.Next() {
		var (
			id              int64
			rentPW          float64
			availableDate   *time.Time
			inspectionTimes []string
			postcode        string
			headline        string
			isActive        bool
			status          string
		)
		if err := rows.Scan(&id, &rentPW, &availableDate, &inspectionTimes, &postcode, &headline, &isActive, &status); err != nil {
			return nil, fmt.Errorf("%w: scanning stored row: %v", domain.ErrStore, err)
		}
		stored = append(stored, domain.StoredListing{
			ListingID: strconv.FormatInt(id, 10),
			Key: domain.ChangeKey{
				RentPerWeek:     rentPW,
				AvailableDate:   availableDate,
				InspectionTimes: inspectionTimes,
				Postcode:        postcode,
				Headline:        headline,
			},
			IsActive: isActive,
			Status:   domain.ListingStatus(status),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading stored rows: %v", domain.ErrStore, err)
	}
	return stored, nil
}

const insertListing = `
INSERT INTO listings (
	listing_id, url, address, suburb, state, postcode, property_type,
	rent_pw, bond, bedrooms, bathrooms, parking_spaces, bedroom_display,
	available_date, inspection_times,
	agency_name, agent_name, agent_phone, agent_email, agent_profile_url,
	agency_logo_url, enquiry_form_action,
	headline, description, feature_tags, images, cover_image,
	latitude, longitude, geohash, features,
	is_active, status, first_seen_at, last_seen_at, status_changed_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12, $13,
	$14, $15,
	$16, $17, $18, $19, $20,
	$21, $22,
	$23, $24, $25, $26, $27,
	$28, $29, $30, $31,
	TRUE, $32, $33, $33, $33
)`

// BatchInsert creates brand-new active rows with status "new".
func (t *reconcileTx) BatchInsert(ctx context.Context, records []domain.SnapshotRecord, at time.Time) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		id, features, err := rowKeyAndFeatures(record)
		if err != nil {
			return err
		}
		batch.Queue(insertListing,
			id, record.URL, record.Address, record.Suburb, record.State, record.Postcode, record.PropertyType,
			record.RentPerWeek, record.Bond, record.Bedrooms, record.Bathrooms, record.ParkingSpaces, record.BedroomDisplay,
			record.AvailableDate, textArray(record.InspectionTimes),
			record.AgencyName, record.AgentName, record.AgentPhone, record.AgentEmail, record.AgentProfileURL,
			record.AgencyLogoURL, record.EnquiryFormAction,
			record.Headline, record.Description, textArray(record.FeatureTags), textArray(record.Images), record.CoverImage,
			record.Latitude, record.Longitude, record.Geohash, features,
			string(domain.StatusNew), at,
		)
	}
	return t.sendBatch(ctx, batch, "inserting listings")
}

const updateListing = `
UPDATE listings SET
	url = $2, address = $3, suburb = $4, state = $5, postcode = $6,
	property_type = $7, rent_pw = $8, bond = $9, bedrooms = $10,
	bathrooms = $11, parking_spaces = $12, bedroom_display = $13,
	available_date = $14, inspection_times = $15,
	agency_name = $16, agent_name = $17, agent_phone = $18,
	agent_email = $19, agent_profile_url = $20, agency_logo_url = $21,
	enquiry_form_action = $22, headline = $23, description = $24,
	feature_tags = $25, images = $26, cover_image = $27,
	latitude = $28, longitude = $29, geohash = $30, features = $31,
	is_active = TRUE, status = $32, last_seen_at = $33, status_changed_at = $33
WHERE listing_id = $1`

// BatchUpdate rewrites existing rows with fresh field values. Serves both
// the updated and the relisted bucket; the status comes from the mutation.
func (t *reconcileTx) BatchUpdate(ctx context.Context, mutations []domain.ListingMutation, at time.Time) error {
	if len(mutations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range mutations {
		record := m.Record
		id, features, err := rowKeyAndFeatures(record)
		if err != nil {
			return err
		}
		batch.Queue(updateListing,
			id, record.URL, record.Address, record.Suburb, record.State, record.Postcode,
			record.PropertyType, record.RentPerWeek, record.Bond, record.Bedrooms,
			record.Bathrooms, record.ParkingSpaces, record.BedroomDisplay,
			record.AvailableDate, textArray(record.InspectionTimes),
			record.AgencyName, record.AgentName, record.AgentPhone,
			record.AgentEmail, record.AgentProfileURL, record.AgencyLogoURL,
			record.EnquiryFormAction, record.Headline, record.Description,
			textArray(record.FeatureTags), textArray(record.Images), record.CoverImage,
			record.Latitude, record.Longitude, record.Geohash, features,
			string(m.Status), at,
		)
	}
	return t.sendBatch(ctx, batch, "updating listings")
}

// BatchDeactivate flips rows to inactive. Only rows sitting in an on-market
// status take the off-market label; administratively parked rows keep theirs.
func (t *reconcileTx) BatchDeactivate(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	numericIDs, err := numericIDs(ids)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE listings SET
			is_active = FALSE,
			status = CASE
				WHEN status IN ('new', 'updated', 'unchanged', 'relisted') THEN 'off-market'
				ELSE status
			END,
			status_changed_at = $2
		WHERE listing_id = ANY($1)`,
		numericIDs, at)
	if err != nil {
		return fmt.Errorf("%w: deactivating listings: %v", domain.ErrStore, err)
	}
	return nil
}

// BatchReactivate stamps the relisted status on rows whose field values were
// refreshed through BatchUpdate in the same run.
func (t *reconcileTx) BatchReactivate(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	numericIDs, err := numericIDs(ids)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE listings SET
			is_active = TRUE,
			status = $3,
			status_changed_at = $2
		WHERE listing_id = ANY($1)`,
		numericIDs, at, string(domain.StatusRelisted))
	if err != nil {
		return fmt.Errorf("%w: reactivating listings: %v", domain.ErrStore, err)
	}
	return nil
}

func (t *reconcileTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrStore, err)
	}
	return nil
}

func (t *reconcileTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *reconcileTx) sendBatch(ctx context.Context, batch *pgx.Batch, action string) error {
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrStore, action, err)
		}
	}
	return nil
}

// rowKeyAndFeatures validates the numeric key and serializes the classified
// feature map for the JSONB column.
func rowKeyAndFeatures(record domain.SnapshotRecord) (int64, []byte, error) {
	id, err := strconv.ParseInt(record.ListingID, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: non-numeric listing id %q: %v", domain.ErrStore, record.ListingID, err)
	}
	features, err := json.Marshal(record.Classified)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: encoding features for %s: %v", domain.ErrStore, record.ListingID, err)
	}
	return id, features, nil
}

func numericIDs(ids []string) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric listing id %q: %v", domain.ErrStore, raw, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// textArray keeps empty slices as empty Postgres arrays instead of NULLs.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
