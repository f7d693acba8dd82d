package config

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"parking-lpr-service/internal/domain/parking"
)

// TariffHolder carries the operator-editable rate table. The engine never
// sees the holder, only a snapshot per call, so fee computation stays pure.
// Updates come from config-file edits (hot reload) or the admin endpoint.
type TariffHolder struct {
	current atomic.Value // holds parking.RateTable
	log     zerolog.Logger
}

func NewTariffHolder(v *viper.Viper, log zerolog.Logger) (*TariffHolder, error) {
	var table parking.RateTable
	if err := v.UnmarshalKey("tariff", &table); err != nil {
		return nil, err
	}
	if err := ValidateRateTable(table); err != nil {
		return nil, err
	}

	h := &TariffHolder{log: log}
	h.current.Store(table)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated parking.RateTable
		if err := v.UnmarshalKey("tariff", &updated); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("tariff reload failed")
			return
		}
		if err := ValidateRateTable(updated); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("invalid tariff config ignored")
			return
		}
		h.current.Store(updated)
		log.Info().Str("file", e.Name).Msg("tariff table reloaded")
	})

	return h, nil
}

// NewStaticTariffHolder wraps a fixed table with no file watching. Used where
// no viper instance exists, e.g. tests and one-shot tools.
func NewStaticTariffHolder(table parking.RateTable) (*TariffHolder, error) {
	if err := ValidateRateTable(table); err != nil {
		return nil, err
	}
	h := &TariffHolder{log: zerolog.Nop()}
	h.current.Store(table)
	return h, nil
}

// Get returns the current table snapshot.
func (h *TariffHolder) Get() parking.RateTable {
	return h.current.Load().(parking.RateTable)
}

// Set replaces the table after validation. Used by the admin tariff endpoint.
func (h *TariffHolder) Set(table parking.RateTable) error {
	if err := ValidateRateTable(table); err != nil {
		return err
	}
	h.current.Store(table)
	h.log.Info().Int64("grace_minutes", table.GraceMinutes).Msg("tariff table updated by operator")
	return nil
}

// ValidateRateTable rejects tables that would misbill: negative amounts,
// negative grace, or a missing vehicle class.
func ValidateRateTable(table parking.RateTable) error {
	if table.GraceMinutes < 0 {
		return errors.New("tariff.grace_minutes cannot be negative")
	}
	for _, class := range []parking.VehicleClass{parking.ClassMotorbike, parking.ClassCar} {
		rate, ok := table.Rates[class]
		if !ok {
			return fmt.Errorf("tariff.rates missing class %q", class)
		}
		if rate.FirstHourFee < 0 || rate.HourlyFee < 0 || rate.DailyCap < 0 {
			return fmt.Errorf("tariff.rates.%s has a negative amount", class)
		}
	}
	return nil
}
