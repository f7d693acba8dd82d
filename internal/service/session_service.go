package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"parking-lpr-service/internal/capture"
	"parking-lpr-service/internal/config"
	"parking-lpr-service/internal/domain/parking"
	"parking-lpr-service/internal/plate"
	"parking-lpr-service/internal/repository"
	"parking-lpr-service/internal/tariff"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnrecognizedPlate means canonicalization produced an empty key. No
	// event is written; the operator should capture again.
	ErrUnrecognizedPlate = errors.New("unrecognized plate")
)

// plateLocks serializes decide+insert per canonical plate. Two simultaneous
// captures of the same plate must not both read the same last event, or the
// IN/OUT alternation breaks and the session double- or zero-bills.
type plateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPlateLocks() *plateLocks {
	return &plateLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *plateLocks) forPlate(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

type SessionService struct {
	repo     *repository.LedgerRepository
	tariffs  *config.TariffHolder
	captures *capture.Store
	scope    parking.Scope
	locks    *plateLocks
	log      zerolog.Logger
}

func NewSessionService(
	repo *repository.LedgerRepository,
	tariffs *config.TariffHolder,
	captures *capture.Store,
	scope parking.Scope,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		repo:     repo,
		tariffs:  tariffs,
		captures: captures,
		scope:    scope,
		locks:    newPlateLocks(),
		log:      log,
	}
}

// ProcessObservation runs one capture through the full session transaction:
// canonicalize, decide IN/OUT against the ledger, price the exit, append the
// event. Orphaned exits and class mismatches come back as warnings on the
// result; storage failures abort without writing.
func (s *SessionService) ProcessObservation(ctx context.Context, payload parking.ObservationPayload) (*parking.ObservationResult, error) {
	if !payload.VehicleClass.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", ErrInvalidInput, payload.VehicleClass)
	}
	if payload.ObservedAt.IsZero() {
		return nil, fmt.Errorf("%w: observed_at is required", ErrInvalidInput)
	}

	canonical := plate.Canonicalize(payload.RawText)
	if canonical == "" {
		return nil, fmt.Errorf("%w: raw text %q", ErrUnrecognizedPlate, payload.RawText)
	}
	display := plate.FormatDisplay(canonical)
	ts := payload.ObservedAt.Truncate(time.Second)

	// Artifact writes are slow file I/O and must finish before the per-plate
	// lock is taken.
	var imagePath, cropPath string
	if s.captures != nil && (payload.SnapshotB64 != "" || payload.CropB64 != "") {
		var err error
		imagePath, cropPath, err = s.captures.SavePair(payload.SnapshotB64, payload.CropB64)
		if err != nil {
			s.log.Warn().Err(err).Str("plate", canonical).Msg("failed to store capture artifacts")
		}
	}

	lock := s.locks.forPlate(canonical)
	lock.Lock()
	defer lock.Unlock()

	last, err := s.repo.MostRecentEvent(ctx, canonical, s.scope, ts)
	if err != nil {
		s.log.Error().Err(err).Str("plate", canonical).Msg("failed to read last event")
		return nil, err
	}

	action := parking.ActionIn
	if last != nil && last.Action == parking.ActionIn {
		action = parking.ActionOut
	}

	result := &parking.ObservationResult{
		Action:         action,
		PlateCanonical: canonical,
		PlateDisplay:   display,
		VehicleClass:   payload.VehicleClass,
		Timestamp:      ts,
	}

	var fee int64
	var duration int64
	if action == parking.ActionOut {
		fee, duration, err = s.priceExit(ctx, canonical, ts, payload.VehicleClass, result)
		if err != nil {
			return nil, err
		}
	}
	result.Fee = fee
	result.DurationMinutes = duration

	event := &parking.Event{
		Timestamp:      ts,
		DateKey:        parking.DateKeyOf(ts),
		Action:         action,
		VehicleClass:   payload.VehicleClass,
		PlateCanonical: canonical,
		PlateDisplay:   display,
		Fee:            fee,
		ImagePath:      imagePath,
		CropPath:       cropPath,
	}

	var rawPayload datatypes.JSON
	if len(payload.RawPayload) > 0 {
		if b, err := json.Marshal(payload.RawPayload); err == nil {
			rawPayload = b
		}
	}

	if err := s.repo.InsertEvent(ctx, event, rawPayload); err != nil {
		s.log.Error().
			Err(err).
			Str("plate", canonical).
			Str("action", string(action)).
			Msg("failed to record event")
		return nil, err
	}
	result.EventID = event.ID

	s.log.Info().
		Int64("event_id", event.ID).
		Str("action", string(action)).
		Str("plate", canonical).
		Str("display", display).
		Str("class", string(payload.VehicleClass)).
		Int64("fee", fee).
		Int64("duration_minutes", duration).
		Msg("recorded parking event")

	return result, nil
}

// priceExit finds the session being closed and bills it. The same scope as
// the action decision drives the matching-IN lookup. A missing IN records a
// zero-fee exit with a warning; the vehicle must still be able to leave.
func (s *SessionService) priceExit(ctx context.Context, canonical string, ts time.Time, class parking.VehicleClass, result *parking.ObservationResult) (fee, duration int64, err error) {
	matchedIn, err := s.repo.MostRecentIn(ctx, canonical, s.scope, ts)
	if err != nil {
		s.log.Error().Err(err).Str("plate", canonical).Msg("failed to look up matching IN event")
		return 0, 0, err
	}

	if matchedIn == nil {
		result.Warnings = append(result.Warnings, parking.WarnOrphanedExit)
		s.log.Warn().Str("plate", canonical).Msg("exit without a matching entry, fee set to 0")
		return 0, 0, nil
	}

	result.MatchedIn = &parking.MatchedInRef{
		EventID:   matchedIn.ID,
		Timestamp: matchedIn.Timestamp,
		ImagePath: matchedIn.ImagePath,
		CropPath:  matchedIn.CropPath,
	}

	if matchedIn.VehicleClass != "" && matchedIn.VehicleClass != class {
		// Billing follows the operator's current selection.
		result.Warnings = append(result.Warnings, parking.WarnVehicleClassMismatch)
		s.log.Warn().
			Str("plate", canonical).
			Str("in_class", string(matchedIn.VehicleClass)).
			Str("out_class", string(class)).
			Msg("vehicle class changed between entry and exit")
	}

	table := s.tariffs.Get()
	duration = tariff.DurationMinutes(matchedIn.Timestamp, ts)
	fee = tariff.ComputeFee(duration, table.Rates[class], table.GraceMinutes)
	return fee, duration, nil
}

// DailySummary reports revenue and per-class exit counts for one date
// (default today).
func (s *SessionService) DailySummary(ctx context.Context, date string) (*parking.DailySummary, error) {
	if date == "" {
		date = parking.DateKeyOf(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return s.repo.DailySummary(ctx, date)
}

// RecentEvents lists the newest events for the dashboard log.
func (s *SessionService) RecentEvents(ctx context.Context, limit int) ([]*parking.Event, error) {
	return s.repo.RecentEvents(ctx, limit)
}
