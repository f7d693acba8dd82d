package parking

import (
	"time"
)

// Action is the direction of a gate event.
type Action string

const (
	ActionIn  Action = "IN"
	ActionOut Action = "OUT"
)

// VehicleClass selects the rate used for billing.
type VehicleClass string

const (
	ClassMotorbike VehicleClass = "motorbike"
	ClassCar       VehicleClass = "car"
)

func (c VehicleClass) Valid() bool {
	return c == ClassMotorbike || c == ClassCar
}

// ObservationPayload is one captured recognition handed to the orchestrator.
// RawText comes straight from the recognizer and may be empty or garbage.
type ObservationPayload struct {
	RawText      string                 `json:"raw_text"`
	VehicleClass VehicleClass           `json:"vehicle_class"`
	ObservedAt   time.Time              `json:"observed_at"`
	SnapshotB64  string                 `json:"snapshot_b64,omitempty"`
	CropB64      string                 `json:"crop_b64,omitempty"`
	RawPayload   map[string]interface{} `json:"raw_payload,omitempty"`
}

// Event is one immutable ledger row. ID is assigned by the ledger and is the
// only reliable recency ordering; timestamps from fast repeated captures are
// not guaranteed monotonic.
type Event struct {
	ID             int64
	Timestamp      time.Time
	DateKey        string
	Action         Action
	VehicleClass   VehicleClass
	PlateCanonical string
	PlateDisplay   string
	Fee            int64
	ImagePath      string
	CropPath       string
}

// Warning codes carried on a result. These are business-rule anomalies, not
// failures: the event is still recorded.
const (
	WarnOrphanedExit         = "orphaned_exit"
	WarnVehicleClassMismatch = "vehicle_class_mismatch"
)

// MatchedInRef points an OUT result at the session it closed, so a caller
// can render the IN-vs-OUT comparison.
type MatchedInRef struct {
	EventID   int64     `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	ImagePath string    `json:"image_path,omitempty"`
	CropPath  string    `json:"crop_path,omitempty"`
}

// ObservationResult summarizes one processed observation for display.
type ObservationResult struct {
	EventID         int64         `json:"event_id"`
	Action          Action        `json:"action"`
	PlateCanonical  string        `json:"plate_canonical"`
	PlateDisplay    string        `json:"plate_display"`
	VehicleClass    VehicleClass  `json:"vehicle_class"`
	Fee             int64         `json:"fee"`
	DurationMinutes int64         `json:"duration_minutes"`
	Timestamp       time.Time     `json:"timestamp"`
	MatchedIn       *MatchedInRef `json:"matched_in,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Rate is the tariff for one vehicle class. A DailyCap of 0 means no cap.
type Rate struct {
	FirstHourFee int64 `json:"first_hour_fee" mapstructure:"first_hour_fee"`
	HourlyFee    int64 `json:"hourly_fee" mapstructure:"hourly_fee"`
	DailyCap     int64 `json:"daily_cap" mapstructure:"daily_cap"`
}

// RateTable maps vehicle classes to rates plus one shared grace period.
type RateTable struct {
	Rates        map[VehicleClass]Rate `json:"rates" mapstructure:"rates"`
	GraceMinutes int64                 `json:"grace_minutes" mapstructure:"grace_minutes"`
}

// Scope bounds the "most recent event" lookups. The same scope must be used
// for the IN/OUT decision and for the matching-IN fee lookup, otherwise an
// exit could be billed against a different session than the one being closed.
type Scope string

const (
	// ScopeGlobal alternates against the most recent event ever. A vehicle
	// parked overnight still bills correctly on exit.
	ScopeGlobal Scope = "global"
	// ScopeDay alternates against the most recent event today; every plate
	// resets to IN at midnight.
	ScopeDay Scope = "day"
)

func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeDay
}

// DailySummary aggregates OUT events for one calendar date.
type DailySummary struct {
	Date      string                 `json:"date"`
	TotalFee  int64                  `json:"total_fee"`
	OutCounts map[VehicleClass]int64 `json:"out_counts"`
}

// DateKeyOf renders the calendar-date scoping key for a timestamp.
func DateKeyOf(t time.Time) string {
	return t.Format("2006-01-02")
}
