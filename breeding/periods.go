package breeding

import (
	"fmt"
	"strings"
)

// Periods are the biological windows, in days, that drive validation and
// the scheduled jobs. Every field is configurable per farm.
type Periods struct {
	HeatCycleDays               int `yaml:"heat_cycle_days" json:"heat_cycle_days"`
	MinHeatIntervalDays         int `yaml:"min_heat_interval_days" json:"min_heat_interval_days"`
	PostParturitionRecoveryDays int `yaml:"post_parturition_recovery_days" json:"post_parturition_recovery_days"`
	PostAbortionRecoveryDays    int `yaml:"post_abortion_recovery_days" json:"post_abortion_recovery_days"`
	ServiceWindowDays           int `yaml:"service_window_days" json:"service_window_days"`
	GestationDays               int `yaml:"gestation_days" json:"gestation_days"`
	LactationDays               int `yaml:"lactation_days" json:"lactation_days"`
}

// Gestation bounds accepted on recorded outcomes.
const (
	MinBirthGestationDays    = 110
	MaxBirthGestationDays    = 120
	MinAbortionGestationDays = 1
	MaxAbortionGestationDays = 113
)

// DefaultPeriods returns the standard commercial-swine windows.
func DefaultPeriods() Periods {
	return Periods{
		HeatCycleDays:               21,
		MinHeatIntervalDays:         18,
		PostParturitionRecoveryDays: 21,
		PostAbortionRecoveryDays:    14,
		ServiceWindowDays:           3,
		GestationDays:               114,
		LactationDays:               21,
	}
}

// WithDefaults fills zero fields from DefaultPeriods.
func (p Periods) WithDefaults() Periods {
	d := DefaultPeriods()
	fill := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&p.HeatCycleDays, d.HeatCycleDays)
	fill(&p.MinHeatIntervalDays, d.MinHeatIntervalDays)
	fill(&p.PostParturitionRecoveryDays, d.PostParturitionRecoveryDays)
	fill(&p.PostAbortionRecoveryDays, d.PostAbortionRecoveryDays)
	fill(&p.ServiceWindowDays, d.ServiceWindowDays)
	fill(&p.GestationDays, d.GestationDays)
	fill(&p.LactationDays, d.LactationDays)
	return p
}

// Validate checks that the windows are positive and that the minimum heat
// interval does not exceed the normal cycle.
func (p Periods) Validate() error {
	var errs []string
	check := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}
	check("heat_cycle_days", p.HeatCycleDays)
	check("min_heat_interval_days", p.MinHeatIntervalDays)
	check("post_parturition_recovery_days", p.PostParturitionRecoveryDays)
	check("post_abortion_recovery_days", p.PostAbortionRecoveryDays)
	check("service_window_days", p.ServiceWindowDays)
	check("gestation_days", p.GestationDays)
	check("lactation_days", p.LactationDays)
	if p.MinHeatIntervalDays > p.HeatCycleDays {
		errs = append(errs, "min_heat_interval_days cannot exceed heat_cycle_days")
	}
	if len(errs) > 0 {
		return fmt.Errorf("periods: %s", strings.Join(errs, "; "))
	}
	return nil
}
