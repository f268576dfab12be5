/*
dto.go - Request bodies for the breeding API

PURPOSE:
  Typed request bodies. Dates decode straight into breeding.Date and
  weights into decimal.Decimal, so a malformed value fails at decode time
  with 400 instead of reaching the coordinator. Unknown fields are rejected,
  which keeps projection-owned sow fields (reproductive_status, counters,
  expected dates) out of every write path.

NAMING CONVENTION:
  - *Request: create bodies, required fields as values
  - *Update:  partial updates, every field a pointer (nil = unchanged)

RESPONSES:
  Domain types carry their own JSON tags and are returned as-is inside
  the { data, warnings } envelope.

SEE ALSO:
  - handlers.go: Uses these types
  - breeding/coordinator*.go: Patch types these convert to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/swinetrack/breeding-engine/breeding"
)

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// =============================================================================
// HERD
// =============================================================================

type SowRequest struct {
	EarTag        string             `json:"ear_tag"`
	Alias         string             `json:"alias"`
	Breed         string             `json:"breed"`
	FarmName      string             `json:"farm_name"`
	BirthDate     *breeding.Date     `json:"birth_date"`
	EntryDate     *breeding.Date     `json:"entry_date"`
	Status        breeding.SowStatus `json:"status"`
	CurrentWeight *decimal.Decimal   `json:"current_weight"`
	Notes         string             `json:"notes"`
}

func (r SowRequest) toSow() breeding.Sow {
	return breeding.Sow{
		EarTag:        r.EarTag,
		Alias:         r.Alias,
		Breed:         r.Breed,
		FarmName:      r.FarmName,
		BirthDate:     r.BirthDate,
		EntryDate:     r.EntryDate,
		Status:        r.Status,
		CurrentWeight: nullDecimal(r.CurrentWeight),
		Notes:         r.Notes,
	}
}

type SowUpdate struct {
	EarTag        *string             `json:"ear_tag"`
	Alias         *string             `json:"alias"`
	Breed         *string             `json:"breed"`
	FarmName      *string             `json:"farm_name"`
	BirthDate     *breeding.Date      `json:"birth_date"`
	EntryDate     *breeding.Date      `json:"entry_date"`
	Status        *breeding.SowStatus `json:"status"`
	CurrentWeight *decimal.Decimal    `json:"current_weight"`
	Notes         *string             `json:"notes"`
}

func (u SowUpdate) toPatch() breeding.SowPatch {
	return breeding.SowPatch{
		EarTag:        u.EarTag,
		Alias:         u.Alias,
		Breed:         u.Breed,
		FarmName:      u.FarmName,
		BirthDate:     u.BirthDate,
		EntryDate:     u.EntryDate,
		Status:        u.Status,
		CurrentWeight: u.CurrentWeight,
		Notes:         u.Notes,
	}
}

// DeactivateRequest retires a sow.
type DeactivateRequest struct {
	Status breeding.SowStatus `json:"status"`
}

type BoarRequest struct {
	EarTag string              `json:"ear_tag"`
	Name   string              `json:"name"`
	Breed  string              `json:"breed"`
	Status breeding.BoarStatus `json:"status"`
	Notes  string              `json:"notes"`
}

type BoarUpdate struct {
	EarTag *string              `json:"ear_tag"`
	Name   *string              `json:"name"`
	Breed  *string              `json:"breed"`
	Status *breeding.BoarStatus `json:"status"`
	Notes  *string              `json:"notes"`
}

// =============================================================================
// HEATS AND SERVICES
// =============================================================================

type HeatRequest struct {
	SowID             int64                  `json:"sow_id"`
	HeatDate          breeding.Date          `json:"heat_date"`
	HeatEndDate       *breeding.Date         `json:"heat_end_date"`
	Intensity         breeding.HeatIntensity `json:"intensity"`
	Induced           bool                   `json:"induced"`
	InductionProtocol string                 `json:"induction_protocol"`
	Notes             string                 `json:"notes"`
}

type HeatUpdate struct {
	HeatDate          *breeding.Date          `json:"heat_date"`
	HeatEndDate       *breeding.Date          `json:"heat_end_date"`
	Intensity         *breeding.HeatIntensity `json:"intensity"`
	InductionProtocol *string                 `json:"induction_protocol"`
	Notes             *string                 `json:"notes"`
}

// HeatCheck asks whether a heat could be registered.
type HeatCheck struct {
	SowID    int64         `json:"sow_id"`
	HeatDate breeding.Date `json:"heat_date"`
	Induced  bool          `json:"induced"`
}

type ServiceRequest struct {
	SowID                 int64                `json:"sow_id"`
	HeatID                int64                `json:"heat_id"`
	BoarID                *int64               `json:"boar_id"`
	ServiceDate           breeding.Date        `json:"service_date"`
	ServiceType           breeding.ServiceType `json:"service_type"`
	MatingDurationMinutes *int                 `json:"mating_duration_minutes"`
	MatingQuality         string               `json:"mating_quality"`
	InseminationType      string               `json:"insemination_type"`
	SemenDoseCode         string               `json:"semen_dose_code"`
	SemenVolumeML         *decimal.Decimal     `json:"semen_volume_ml"`
	SemenConcentration    *decimal.Decimal     `json:"semen_concentration"`
	TechnicianName        string               `json:"technician_name"`
	Success               *bool                `json:"success"`
	Notes                 string               `json:"notes"`
}

func (r ServiceRequest) toService() breeding.Service {
	return breeding.Service{
		SowID:                 r.SowID,
		HeatID:                r.HeatID,
		BoarID:                r.BoarID,
		ServiceDate:           r.ServiceDate,
		ServiceType:           r.ServiceType,
		MatingDurationMinutes: r.MatingDurationMinutes,
		MatingQuality:         r.MatingQuality,
		InseminationType:      r.InseminationType,
		SemenDoseCode:         r.SemenDoseCode,
		SemenVolumeML:         nullDecimal(r.SemenVolumeML),
		SemenConcentration:    nullDecimal(r.SemenConcentration),
		TechnicianName:        r.TechnicianName,
		Success:               r.Success,
		Notes:                 r.Notes,
	}
}

type ServiceUpdate struct {
	ServiceDate           *breeding.Date        `json:"service_date"`
	BoarID                *int64                `json:"boar_id"`
	ServiceType           *breeding.ServiceType `json:"service_type"`
	MatingDurationMinutes *int                  `json:"mating_duration_minutes"`
	MatingQuality         *string               `json:"mating_quality"`
	InseminationType      *string               `json:"insemination_type"`
	SemenDoseCode         *string               `json:"semen_dose_code"`
	SemenVolumeML         *decimal.Decimal      `json:"semen_volume_ml"`
	SemenConcentration    *decimal.Decimal      `json:"semen_concentration"`
	TechnicianName        *string               `json:"technician_name"`
	Success               *bool                 `json:"success"`
	Notes                 *string               `json:"notes"`
}

func (u ServiceUpdate) toPatch() breeding.ServicePatch {
	return breeding.ServicePatch{
		ServiceDate:           u.ServiceDate,
		BoarID:                u.BoarID,
		ServiceType:           u.ServiceType,
		MatingDurationMinutes: u.MatingDurationMinutes,
		MatingQuality:         u.MatingQuality,
		InseminationType:      u.InseminationType,
		SemenDoseCode:         u.SemenDoseCode,
		SemenVolumeML:         u.SemenVolumeML,
		SemenConcentration:    u.SemenConcentration,
		TechnicianName:        u.TechnicianName,
		Success:               u.Success,
		Notes:                 u.Notes,
	}
}

// ServiceCheck asks whether a service could be registered.
type ServiceCheck struct {
	SowID       int64         `json:"sow_id"`
	HeatID      int64         `json:"heat_id"`
	ServiceDate breeding.Date `json:"service_date"`
}

// =============================================================================
// PREGNANCIES
// =============================================================================

type PregnancyRequest struct {
	SowID                 int64          `json:"sow_id"`
	ServiceID             int64          `json:"service_id"`
	ConceptionDate        breeding.Date  `json:"conception_date"`
	ExpectedFarrowingDate *breeding.Date `json:"expected_farrowing_date"`
	EstimatedPiglets      *int           `json:"estimated_piglets"`
	Notes                 string         `json:"notes"`
}

func (r PregnancyRequest) toPregnancy() breeding.Pregnancy {
	p := breeding.Pregnancy{
		SowID:            r.SowID,
		ServiceID:        r.ServiceID,
		ConceptionDate:   r.ConceptionDate,
		EstimatedPiglets: r.EstimatedPiglets,
		Notes:            r.Notes,
	}
	if r.ExpectedFarrowingDate != nil {
		p.ExpectedFarrowingDate = *r.ExpectedFarrowingDate
	}
	return p
}

type PregnancyUpdate struct {
	ConceptionDate        *breeding.Date               `json:"conception_date"`
	ExpectedFarrowingDate *breeding.Date               `json:"expected_farrowing_date"`
	Confirmed             *bool                        `json:"confirmed"`
	ConfirmationDate      *breeding.Date               `json:"confirmation_date"`
	ConfirmationMethod    *breeding.ConfirmationMethod `json:"confirmation_method"`
	UltrasoundCount       *int                         `json:"ultrasound_count"`
	LastUltrasoundDate    *breeding.Date               `json:"last_ultrasound_date"`
	EstimatedPiglets      *int                         `json:"estimated_piglets"`
	Notes                 *string                      `json:"notes"`
}

func (u PregnancyUpdate) toPatch() breeding.PregnancyPatch {
	return breeding.PregnancyPatch{
		ConceptionDate:        u.ConceptionDate,
		ExpectedFarrowingDate: u.ExpectedFarrowingDate,
		Confirmed:             u.Confirmed,
		ConfirmationDate:      u.ConfirmationDate,
		ConfirmationMethod:    u.ConfirmationMethod,
		UltrasoundCount:       u.UltrasoundCount,
		LastUltrasoundDate:    u.LastUltrasoundDate,
		EstimatedPiglets:      u.EstimatedPiglets,
		Notes:                 u.Notes,
	}
}

// PregnancyCheck asks whether a pregnancy could be registered.
type PregnancyCheck struct {
	SowID          int64         `json:"sow_id"`
	ServiceID      int64         `json:"service_id"`
	ConceptionDate breeding.Date `json:"conception_date"`
}

type ConfirmRequest struct {
	ConfirmationDate   breeding.Date               `json:"confirmation_date"`
	ConfirmationMethod breeding.ConfirmationMethod `json:"confirmation_method"`
	EstimatedPiglets   *int                        `json:"estimated_piglets"`
	Notes              *string                     `json:"notes"`
}

type StatusRequest struct {
	Status breeding.PregnancyStatus `json:"status"`
	Notes  *string                  `json:"notes"`
}

// =============================================================================
// BIRTHS, ABORTIONS AND PIGLETS
// =============================================================================

type BirthRequest struct {
	SowID               int64              `json:"sow_id"`
	PregnancyID         int64              `json:"pregnancy_id"`
	BoarID              *int64             `json:"boar_id"`
	BirthDate           breeding.Date      `json:"birth_date"`
	GestationDays       int                `json:"gestation_days"`
	BirthType           breeding.BirthType `json:"birth_type"`
	TotalBorn           int                `json:"total_born"`
	BornAlive           int                `json:"born_alive"`
	BornDead            int                `json:"born_dead"`
	Mummified           int                `json:"mummified"`
	Malformed           int                `json:"malformed"`
	TotalLitterWeight   *decimal.Decimal   `json:"total_litter_weight"`
	AvgPigletWeight     *decimal.Decimal   `json:"avg_piglet_weight"`
	ExpectedWeaningDate *breeding.Date     `json:"expected_weaning_date"`
	Notes               string             `json:"notes"`
	SkipLitter          bool               `json:"skip_litter"`
}

func (r BirthRequest) toInput() breeding.BirthInput {
	return breeding.BirthInput{
		Birth: breeding.Birth{
			SowID:               r.SowID,
			PregnancyID:         r.PregnancyID,
			BoarID:              r.BoarID,
			BirthDate:           r.BirthDate,
			GestationDays:       r.GestationDays,
			BirthType:           r.BirthType,
			TotalBorn:           r.TotalBorn,
			BornAlive:           r.BornAlive,
			BornDead:            r.BornDead,
			Mummified:           r.Mummified,
			Malformed:           r.Malformed,
			TotalLitterWeight:   nullDecimal(r.TotalLitterWeight),
			AvgPigletWeight:     nullDecimal(r.AvgPigletWeight),
			ExpectedWeaningDate: r.ExpectedWeaningDate,
			Notes:               r.Notes,
		},
		SkipLitter: r.SkipLitter,
	}
}

type BirthUpdate struct {
	BirthDate           *breeding.Date      `json:"birth_date"`
	GestationDays       *int                `json:"gestation_days"`
	BirthType           *breeding.BirthType `json:"birth_type"`
	TotalBorn           *int                `json:"total_born"`
	BornAlive           *int                `json:"born_alive"`
	BornDead            *int                `json:"born_dead"`
	Mummified           *int                `json:"mummified"`
	Malformed           *int                `json:"malformed"`
	TotalLitterWeight   *decimal.Decimal    `json:"total_litter_weight"`
	AvgPigletWeight     *decimal.Decimal    `json:"avg_piglet_weight"`
	ExpectedWeaningDate *breeding.Date      `json:"expected_weaning_date"`
	Notes               *string             `json:"notes"`
}

func (u BirthUpdate) toPatch() breeding.BirthPatch {
	return breeding.BirthPatch{
		BirthDate:           u.BirthDate,
		GestationDays:       u.GestationDays,
		BirthType:           u.BirthType,
		TotalBorn:           u.TotalBorn,
		BornAlive:           u.BornAlive,
		BornDead:            u.BornDead,
		Mummified:           u.Mummified,
		Malformed:           u.Malformed,
		TotalLitterWeight:   u.TotalLitterWeight,
		AvgPigletWeight:     u.AvgPigletWeight,
		ExpectedWeaningDate: u.ExpectedWeaningDate,
		Notes:               u.Notes,
	}
}

type AbortionRequest struct {
	SowID           int64         `json:"sow_id"`
	PregnancyID     int64         `json:"pregnancy_id"`
	AbortionDate    breeding.Date `json:"abortion_date"`
	GestationDays   int           `json:"gestation_days"`
	FetusesExpelled *int          `json:"fetuses_expelled"`
	ProbableCause   string        `json:"probable_cause"`
	Notes           string        `json:"notes"`
}

type AbortionUpdate struct {
	AbortionDate    *breeding.Date `json:"abortion_date"`
	GestationDays   *int           `json:"gestation_days"`
	FetusesExpelled *int           `json:"fetuses_expelled"`
	ProbableCause   *string        `json:"probable_cause"`
	Notes           *string        `json:"notes"`
}

type PigletRequest struct {
	BirthID       int64                      `json:"birth_id"`
	EarTag        string                     `json:"ear_tag"`
	Sex           breeding.PigletSex         `json:"sex"`
	BirthOrder    *int                       `json:"birth_order"`
	BirthWeight   *decimal.Decimal           `json:"birth_weight"`
	BirthStatus   breeding.PigletBirthStatus `json:"birth_status"`
	CurrentStatus breeding.PigletStatus      `json:"current_status"`
	WeaningDate   *breeding.Date             `json:"weaning_date"`
	WeaningWeight *decimal.Decimal           `json:"weaning_weight"`
	Notes         string                     `json:"notes"`
}

func (r PigletRequest) toPiglet() breeding.Piglet {
	return breeding.Piglet{
		BirthID:       r.BirthID,
		EarTag:        r.EarTag,
		Sex:           r.Sex,
		BirthOrder:    r.BirthOrder,
		BirthWeight:   nullDecimal(r.BirthWeight),
		BirthStatus:   r.BirthStatus,
		CurrentStatus: r.CurrentStatus,
		WeaningDate:   r.WeaningDate,
		WeaningWeight: nullDecimal(r.WeaningWeight),
		Notes:         r.Notes,
	}
}

type PigletUpdate struct {
	EarTag        *string                `json:"ear_tag"`
	Sex           *breeding.PigletSex    `json:"sex"`
	BirthOrder    *int                   `json:"birth_order"`
	BirthWeight   *decimal.Decimal       `json:"birth_weight"`
	CurrentStatus *breeding.PigletStatus `json:"current_status"`
	WeaningDate   *breeding.Date         `json:"weaning_date"`
	WeaningWeight *decimal.Decimal       `json:"weaning_weight"`
	Notes         *string                `json:"notes"`
}

func (u PigletUpdate) toPatch() breeding.PigletPatch {
	return breeding.PigletPatch{
		EarTag:        u.EarTag,
		Sex:           u.Sex,
		BirthOrder:    u.BirthOrder,
		BirthWeight:   u.BirthWeight,
		CurrentStatus: u.CurrentStatus,
		WeaningDate:   u.WeaningDate,
		WeaningWeight: u.WeaningWeight,
		Notes:         u.Notes,
	}
}

// =============================================================================
// CALENDAR
// =============================================================================

type CalendarEventRequest struct {
	Title       string                     `json:"title"`
	EventDate   time.Time                  `json:"event_date"`
	EventType   breeding.CalendarEventType `json:"event_type"`
	Description string                     `json:"description"`
}

type CalendarEventUpdate struct {
	Title       *string                     `json:"title"`
	EventDate   *time.Time                  `json:"event_date"`
	EventType   *breeding.CalendarEventType `json:"event_type"`
	Description *string                     `json:"description"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
