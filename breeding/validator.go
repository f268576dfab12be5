/*
validator.go - Reproductive rule checks performed before an event is recorded

PURPOSE:
  Decides whether a heat, service or pregnancy may be registered for a sow
  on a given date. The Validator only reads; it never writes.

RESULT SHAPE:
  Every check runs and contributes to Errors (blocking) or Warnings
  (advisory). The only short-circuits are missing entities, after which
  further checks have nothing to evaluate.

DAY ARITHMETIC:
  Windows are compared in whole calendar days from the reference record to
  the candidate date. A reference record dated after the candidate yields a
  negative count and is therefore always "too soon".

SEE ALSO:
  - periods.go: The windows
  - coordinator.go: Runs these checks inside the write transaction
*/
package breeding

import (
	"context"
	"fmt"
	"strings"
)

// ValidationResult is the outcome of a registration check.
type ValidationResult struct {
	Valid              bool               `json:"valid"`
	Errors             []string           `json:"errors"`
	Warnings           []string           `json:"warnings"`
	ReproductiveStatus ReproductiveStatus `json:"reproductive_status,omitempty"`
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r ValidationResult) done() ValidationResult {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	r.Valid = len(r.Errors) == 0
	return r
}

// Err returns a *ValidationError when the result is not valid.
func (r ValidationResult) Err(operation string) error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Operation: operation, Result: r}
}

// Messages the coordinator and tests match on.
const (
	msgSowNotFound     = "sow not found"
	msgHeatNotFound    = "heat not found"
	msgServiceNotFound = "service not found"
	msgInducedHeat     = "induced heat: confirm the hormonal protocol was applied as prescribed"
)

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator evaluates registration rules against a Reader.
type Validator struct {
	reader  Reader
	periods Periods
}

func NewValidator(r Reader, p Periods) *Validator {
	return &Validator{reader: r, periods: p}
}

// WithReader returns a copy bound to r, typically a transaction.
func (v *Validator) WithReader(r Reader) *Validator {
	return &Validator{reader: r, periods: v.periods}
}

// Periods returns the windows the validator applies.
func (v *Validator) Periods() Periods { return v.periods }

// loadSow returns (nil, nil) when the sow does not exist.
func (v *Validator) loadSow(ctx context.Context, sowID int64) (*Sow, error) {
	sow, err := v.reader.GetSow(ctx, sowID)
	if IsNotFound(err) {
		return nil, nil
	}
	return sow, err
}

func (v *Validator) checkActive(res *ValidationResult, sow *Sow) {
	if !sow.IsActive() {
		res.errorf("sow is not active (current status: %s)", sow.Status)
	}
}

// checkRecentBirth flags a farrowing fewer than PostParturitionRecoveryDays before date.
func (v *Validator) checkRecentBirth(ctx context.Context, res *ValidationResult, sowID int64, date Date) error {
	birth, err := latestBirth(ctx, v.reader, sowID)
	if err != nil || birth == nil {
		return err
	}
	days := DaysBetween(birth.BirthDate, date)
	if days < v.periods.PostParturitionRecoveryDays {
		res.errorf("sow is in lactation recovery (farrowed %s, %d days ago); minimum is %d days after farrowing",
			birth.BirthDate, days, v.periods.PostParturitionRecoveryDays)
	}
	return nil
}

// CanRegisterHeat checks whether a heat detected on heatDate may be recorded.
func (v *Validator) CanRegisterHeat(ctx context.Context, sowID int64, heatDate Date) (ValidationResult, error) {
	var res ValidationResult

	sow, err := v.loadSow(ctx, sowID)
	if err != nil {
		return res, err
	}
	if sow == nil {
		res.errorf(msgSowNotFound)
		return res.done(), nil
	}
	res.ReproductiveStatus = sow.ReproductiveStatus
	v.checkActive(&res, sow)

	preg, err := activePregnancy(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if preg != nil && preg.Confirmed {
		res.errorf("sow has a confirmed pregnancy in progress (expected farrowing %s)", preg.ExpectedFarrowingDate)
	}

	if err := v.checkRecentBirth(ctx, &res, sowID, heatDate); err != nil {
		return res, err
	}

	last, err := latestHeat(ctx, v.reader, sowID, HeatDetected, HeatServiced)
	if err != nil {
		return res, err
	}
	if last != nil {
		days := DaysBetween(last.HeatDate, heatDate)
		switch {
		case days < v.periods.MinHeatIntervalDays:
			res.errorf("interval since last heat is too short (%d days); minimum is %d days",
				days, v.periods.MinHeatIntervalDays)
		case days < v.periods.HeatCycleDays:
			res.warnf("interval since last heat (%d days) is shorter than the normal %d-day cycle; verify the date",
				days, v.periods.HeatCycleDays)
		}
	}

	abortion, err := latestAbortion(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if abortion != nil {
		days := DaysBetween(abortion.AbortionDate, heatDate)
		if days < v.periods.PostAbortionRecoveryDays {
			res.errorf("sow is in post-abortion recovery (%d days elapsed); minimum is %d days",
				days, v.periods.PostAbortionRecoveryDays)
		}
	}

	return res.done(), nil
}

// CanInduceHeat applies the heat rules to a hormonally induced heat. A short
// interval since the previous heat is expected when inducing, so it is only
// reported as a warning.
func (v *Validator) CanInduceHeat(ctx context.Context, sowID int64, date Date) (ValidationResult, error) {
	res, err := v.CanRegisterHeat(ctx, sowID, date)
	if err != nil {
		return res, err
	}
	kept := res.Errors[:0:0]
	for _, msg := range res.Errors {
		if isShortIntervalError(msg) {
			res.Warnings = append(res.Warnings, msg)
			continue
		}
		kept = append(kept, msg)
	}
	res.Errors = kept
	res.Warnings = append(res.Warnings, msgInducedHeat)
	return res.done(), nil
}

func isShortIntervalError(msg string) bool {
	return strings.HasPrefix(msg, "interval since last heat is too short")
}

// CanRegisterService checks whether a service on serviceDate may be recorded
// against heatID.
func (v *Validator) CanRegisterService(ctx context.Context, sowID, heatID int64, serviceDate Date) (ValidationResult, error) {
	var res ValidationResult

	sow, err := v.loadSow(ctx, sowID)
	if err != nil {
		return res, err
	}
	if sow == nil {
		res.errorf(msgSowNotFound)
		return res.done(), nil
	}
	res.ReproductiveStatus = sow.ReproductiveStatus
	v.checkActive(&res, sow)

	heat, err := v.reader.GetHeat(ctx, heatID)
	if IsNotFound(err) {
		res.errorf(msgHeatNotFound)
		return res.done(), nil
	}
	if err != nil {
		return res, err
	}
	if heat.SowID != sowID {
		res.errorf("heat %d does not belong to sow %d", heatID, sowID)
	}

	switch heat.Status {
	case HeatServiced:
		last, count, err := latestServiceOnHeat(ctx, v.reader, heatID)
		if err != nil {
			return res, err
		}
		if last != nil {
			days := DaysBetween(last.ServiceDate, serviceDate)
			if days > v.periods.ServiceWindowDays {
				res.errorf("heat was already serviced %d days ago; repeat services must fall within %d days",
					days, v.periods.ServiceWindowDays)
			} else {
				res.warnf("additional service for the same heat (service #%d)", count+1)
			}
		}
	case HeatNotServiced, HeatCancelled:
		res.warnf("heat has status %q; verify that a service should be recorded", heat.Status)
	}

	preg, err := activePregnancy(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if preg != nil && preg.Confirmed {
		res.errorf("sow already has a confirmed pregnancy in progress; a service cannot be recorded")
	}

	if err := v.checkRecentBirth(ctx, &res, sowID, serviceDate); err != nil {
		return res, err
	}

	return res.done(), nil
}

// CanRegisterPregnancy checks whether a pregnancy conceived on conceptionDate
// may be recorded against serviceID.
func (v *Validator) CanRegisterPregnancy(ctx context.Context, sowID, serviceID int64, conceptionDate Date) (ValidationResult, error) {
	var res ValidationResult

	sow, err := v.loadSow(ctx, sowID)
	if err != nil {
		return res, err
	}
	if sow == nil {
		res.errorf(msgSowNotFound)
		return res.done(), nil
	}
	res.ReproductiveStatus = sow.ReproductiveStatus
	v.checkActive(&res, sow)

	preg, err := activePregnancy(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if preg != nil {
		state := "pending confirmation"
		if preg.Confirmed {
			state = "confirmed"
		}
		res.errorf("sow already has a pregnancy in progress (%s, expected farrowing %s)",
			state, preg.ExpectedFarrowingDate)
	}

	if err := v.checkRecentBirth(ctx, &res, sowID, conceptionDate); err != nil {
		return res, err
	}

	service, err := v.reader.GetService(ctx, serviceID)
	if IsNotFound(err) {
		res.errorf(msgServiceNotFound)
		return res.done(), nil
	}
	if err != nil {
		return res, err
	}
	if service.SowID != sowID {
		res.errorf("service %d does not belong to sow %d", serviceID, sowID)
	}

	existing, err := v.reader.ListPregnancies(ctx, PregnancyFilter{ServiceID: serviceID, Limit: 1})
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		res.warnf("service %d already has a registered pregnancy", serviceID)
	}

	abortion, err := latestAbortion(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if abortion != nil {
		days := DaysBetween(abortion.AbortionDate, conceptionDate)
		if days < v.periods.PostAbortionRecoveryDays {
			res.warnf("pregnancy registered shortly after an abortion (%d days; recommended %d+ days)",
				days, v.periods.PostAbortionRecoveryDays)
		}
	}

	return res.done(), nil
}

// =============================================================================
// DATE EDITS
// =============================================================================

// CheckServiceDate re-applies the date windows of CanRegisterService to an
// existing service moved to date: every service of the heat must stay within
// ServiceWindowDays of the others, and the lactation recovery still applies.
func (v *Validator) CheckServiceDate(ctx context.Context, s *Service, date Date) (ValidationResult, error) {
	var res ValidationResult
	services, err := v.reader.ListServices(ctx, ServiceFilter{HeatID: s.HeatID})
	if err != nil {
		return res, err
	}
	for _, other := range services {
		if other.ID == s.ID {
			continue
		}
		days := DaysBetween(other.ServiceDate, date)
		if days < 0 {
			days = -days
		}
		if days > v.periods.ServiceWindowDays {
			res.errorf("service #%d of the same heat is %d days apart; services of one heat must fall within %d days",
				other.ServiceNumber, days, v.periods.ServiceWindowDays)
		}
	}
	if err := v.checkRecentBirth(ctx, &res, s.SowID, date); err != nil {
		return res, err
	}
	return res.done(), nil
}

// CheckConceptionDate re-applies the date windows of CanRegisterPregnancy to
// an existing pregnancy moved to date.
func (v *Validator) CheckConceptionDate(ctx context.Context, sowID int64, date Date) (ValidationResult, error) {
	var res ValidationResult
	if err := v.checkRecentBirth(ctx, &res, sowID, date); err != nil {
		return res, err
	}
	abortion, err := latestAbortion(ctx, v.reader, sowID)
	if err != nil {
		return res, err
	}
	if abortion != nil {
		if days := DaysBetween(abortion.AbortionDate, date); days < v.periods.PostAbortionRecoveryDays {
			res.warnf("pregnancy registered shortly after an abortion (%d days; recommended %d+ days)",
				days, v.periods.PostAbortionRecoveryDays)
		}
	}
	return res.done(), nil
}
