package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-lpr-service/internal/domain/parking"
)

// ErrStorage marks ledger read/write failures. These are fatal for the
// current observation and must never be swallowed as business warnings.
var ErrStorage = errors.New("ledger storage error")

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// EventRecord is the persisted shape of one gate event. Rows are append-only:
// nothing in this repository updates or deletes them.
type EventRecord struct {
	ID             int64     `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"not null"`
	DateKey        string    `gorm:"not null;index:idx_events_date_plate"`
	Action         string    `gorm:"not null"`
	VehicleClass   string    `gorm:"not null"`
	PlateCanonical string    `gorm:"not null;index:idx_events_date_plate"`
	PlateDisplay   string
	Fee            int64 `gorm:"not null;default:0"`
	ImagePath      string
	CropPath       string
	RawPayload     datatypes.JSON
	CreatedAt      time.Time
}

func (EventRecord) TableName() string { return "events" }

func (r EventRecord) toDomain() *parking.Event {
	return &parking.Event{
		ID:             r.ID,
		Timestamp:      r.Timestamp,
		DateKey:        r.DateKey,
		Action:         parking.Action(r.Action),
		VehicleClass:   parking.VehicleClass(r.VehicleClass),
		PlateCanonical: r.PlateCanonical,
		PlateDisplay:   r.PlateDisplay,
		Fee:            r.Fee,
		ImagePath:      r.ImagePath,
		CropPath:       r.CropPath,
	}
}

// InsertEvent appends one event and writes the assigned id back into it.
func (r *LedgerRepository) InsertEvent(ctx context.Context, event *parking.Event, rawPayload datatypes.JSON) error {
	rec := EventRecord{
		Timestamp:      event.Timestamp,
		DateKey:        event.DateKey,
		Action:         string(event.Action),
		VehicleClass:   string(event.VehicleClass),
		PlateCanonical: event.PlateCanonical,
		PlateDisplay:   event.PlateDisplay,
		Fee:            event.Fee,
		ImagePath:      event.ImagePath,
		CropPath:       event.CropPath,
		RawPayload:     rawPayload,
		CreatedAt:      time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: insert event: %v", ErrStorage, err)
	}
	event.ID = rec.ID
	return nil
}

// MostRecentEvent returns the highest-id event for the plate within scope, or
// nil when there is none. asOf supplies the date key for day scoping.
func (r *LedgerRepository) MostRecentEvent(ctx context.Context, plateCanonical string, scope parking.Scope, asOf time.Time) (*parking.Event, error) {
	return r.mostRecent(ctx, plateCanonical, scope, asOf, "")
}

// MostRecentIn is MostRecentEvent filtered to IN events. It finds the session
// being closed by an OUT and uses the same scoping as the action decision.
func (r *LedgerRepository) MostRecentIn(ctx context.Context, plateCanonical string, scope parking.Scope, asOf time.Time) (*parking.Event, error) {
	return r.mostRecent(ctx, plateCanonical, scope, asOf, parking.ActionIn)
}

func (r *LedgerRepository) mostRecent(ctx context.Context, plateCanonical string, scope parking.Scope, asOf time.Time, action parking.Action) (*parking.Event, error) {
	query := r.db.WithContext(ctx).
		Where("plate_canonical = ?", plateCanonical)

	if scope == parking.ScopeDay {
		query = query.Where("date_key = ?", parking.DateKeyOf(asOf))
	}
	if action != "" {
		query = query.Where("action = ?", string(action))
	}

	var rec EventRecord
	err := query.Order("id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query latest event: %v", ErrStorage, err)
	}
	return rec.toDomain(), nil
}

// DailySummary totals fees over OUT events for the date and counts OUT events
// per vehicle class.
func (r *LedgerRepository) DailySummary(ctx context.Context, date string) (*parking.DailySummary, error) {
	var totalFee int64
	err := r.db.WithContext(ctx).
		Model(&EventRecord{}).
		Select("COALESCE(SUM(fee), 0)").
		Where("date_key = ? AND action = ?", date, string(parking.ActionOut)).
		Scan(&totalFee).Error
	if err != nil {
		return nil, fmt.Errorf("%w: sum daily fees: %v", ErrStorage, err)
	}

	type classCount struct {
		VehicleClass string
		Count        int64
	}
	var rows []classCount
	err = r.db.WithContext(ctx).
		Model(&EventRecord{}).
		Select("vehicle_class, COUNT(*) as count").
		Where("date_key = ? AND action = ?", date, string(parking.ActionOut)).
		Group("vehicle_class").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: count daily exits: %v", ErrStorage, err)
	}

	counts := make(map[parking.VehicleClass]int64, len(rows))
	for _, row := range rows {
		counts[parking.VehicleClass(row.VehicleClass)] = row.Count
	}
	return &parking.DailySummary{Date: date, TotalFee: totalFee, OutCounts: counts}, nil
}

// RecentEvents returns up to limit events, newest first by id.
func (r *LedgerRepository) RecentEvents(ctx context.Context, limit int) ([]*parking.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var recs []EventRecord
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list recent events: %v", ErrStorage, err)
	}

	events := make([]*parking.Event, 0, len(recs))
	for _, rec := range recs {
		events = append(events, rec.toDomain())
	}
	return events, nil
}
