/*
types.go - Core domain types for the swine reproductive cycle

PURPOSE:
  Defines the herd entities (sows, boars) and the reproductive events
  recorded against a sow (heats, services, pregnancies, births, abortions,
  piglets). Every type here is a plain data carrier; the rules that relate
  them live in validator.go, projection.go and the coordinator files.

REPRODUCTIVE CYCLE:
  empty -> in-heat -> in-service -> pregnant -> lactating -> empty
  Alternates:
    in-service -> empty   pregnancy not confirmed, heat not serviced
    pregnant   -> empty   abortion

OWNERSHIP:
  Sow.ReproductiveStatus, ExpectedFarrowingDate, LastServiceDate,
  LastWeaningDate and the lifetime counters are derived. Only the
  Coordinator writes them, by re-running Project() after every event.

SEE ALSO:
  - projection.go: How the derived sow fields are computed
  - store.go: Persistence interfaces
*/
package breeding

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit fields shared by every persisted entity.
type Audit struct {
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// STATUS ENUMS
// =============================================================================

type SowStatus string

const (
	SowActive    SowStatus = "active"
	SowDiscarded SowStatus = "discarded"
	SowSold      SowStatus = "sold"
	SowDead      SowStatus = "dead"
)

func (s SowStatus) Valid() bool {
	switch s {
	case SowActive, SowDiscarded, SowSold, SowDead:
		return true
	}
	return false
}

type ReproductiveStatus string

const (
	StatusEmpty     ReproductiveStatus = "empty"
	StatusInHeat    ReproductiveStatus = "in-heat"
	StatusInService ReproductiveStatus = "in-service"
	StatusPregnant  ReproductiveStatus = "pregnant"
	StatusLactating ReproductiveStatus = "lactating"
)

type BoarStatus string

const (
	BoarActive   BoarStatus = "active"
	BoarInactive BoarStatus = "inactive"
)

type HeatStatus string

const (
	HeatDetected    HeatStatus = "detected"
	HeatServiced    HeatStatus = "serviced"
	HeatNotServiced HeatStatus = "not-serviced"
	HeatCancelled   HeatStatus = "cancelled"
)

type HeatIntensity string

const (
	IntensityLow    HeatIntensity = "low"
	IntensityMedium HeatIntensity = "medium"
	IntensityHigh   HeatIntensity = "high"
)

type ServiceType string

const (
	ServiceNatural    ServiceType = "natural"
	ServiceArtificial ServiceType = "artificial"
)

type PregnancyStatus string

const (
	PregnancyInProgress        PregnancyStatus = "in-progress"
	PregnancyCompletedBirth    PregnancyStatus = "completed-birth"
	PregnancyCompletedAbortion PregnancyStatus = "completed-abortion"
	PregnancyNotConfirmed      PregnancyStatus = "not-confirmed"
)

// Terminal reports whether the pregnancy has reached an outcome.
func (s PregnancyStatus) Terminal() bool {
	return s == PregnancyCompletedBirth || s == PregnancyCompletedAbortion
}

type ConfirmationMethod string

const (
	ConfirmUltrasound     ConfirmationMethod = "ultrasound"
	ConfirmNoReturnToHeat ConfirmationMethod = "no-return-to-heat"
	ConfirmBloodTest      ConfirmationMethod = "blood-test"
	ConfirmVisual         ConfirmationMethod = "visual"
)

func (m ConfirmationMethod) Valid() bool {
	switch m {
	case ConfirmUltrasound, ConfirmNoReturnToHeat, ConfirmBloodTest, ConfirmVisual:
		return true
	}
	return false
}

type BirthType string

const (
	BirthNormal   BirthType = "normal"
	BirthAssisted BirthType = "assisted"
	BirthCesarean BirthType = "cesarean"
)

type PigletSex string

const (
	PigletMale   PigletSex = "male"
	PigletFemale PigletSex = "female"
)

type PigletBirthStatus string

const (
	PigletBornAlive     PigletBirthStatus = "alive"
	PigletBornDead      PigletBirthStatus = "dead"
	PigletBornMummified PigletBirthStatus = "mummified"
)

type PigletStatus string

const (
	PigletLactating PigletStatus = "lactating"
	PigletWeaned    PigletStatus = "weaned"
	PigletSold      PigletStatus = "sold"
	PigletDead      PigletStatus = "dead"
)

// =============================================================================
// HERD
// =============================================================================

// Sow is a breeding female.
type Sow struct {
	ID        int64     `json:"id"`
	EarTag    string    `json:"ear_tag"`
	Alias     string    `json:"alias,omitempty"`
	Breed     string    `json:"breed,omitempty"`
	FarmName  string    `json:"farm_name,omitempty"`
	BirthDate *Date     `json:"birth_date,omitempty"`
	EntryDate *Date     `json:"entry_date,omitempty"`
	Status    SowStatus `json:"status"`

	// Derived by Project().
	ReproductiveStatus    ReproductiveStatus `json:"reproductive_status"`
	ExpectedFarrowingDate *Date              `json:"expected_farrowing_date,omitempty"`
	LastServiceDate       *Date              `json:"last_service_date,omitempty"`
	LastWeaningDate       *Date              `json:"last_weaning_date,omitempty"`
	ParityCount           int                `json:"parity_count"`
	TotalPigletsBorn      int                `json:"total_piglets_born"`
	TotalPigletsAlive     int                `json:"total_piglets_alive"`
	TotalPigletsDead      int                `json:"total_piglets_dead"`
	TotalAbortions        int                `json:"total_abortions"`

	CurrentWeight decimal.NullDecimal `json:"current_weight"`
	Notes         string              `json:"notes,omitempty"`
	Audit
}

// IsActive reports whether the sow may receive new reproductive events.
func (s *Sow) IsActive() bool { return s.Status == SowActive }

// Boar is a breeding male.
type Boar struct {
	ID     int64      `json:"id"`
	EarTag string     `json:"ear_tag"`
	Name   string     `json:"name,omitempty"`
	Breed  string     `json:"breed,omitempty"`
	Status BoarStatus `json:"status"`
	Notes  string     `json:"notes,omitempty"`
	Audit
}

// =============================================================================
// REPRODUCTIVE EVENTS
// =============================================================================

// Heat is an observed estrus.
type Heat struct {
	ID                int64         `json:"id"`
	SowID             int64         `json:"sow_id"`
	HeatDate          Date          `json:"heat_date"`
	HeatEndDate       *Date         `json:"heat_end_date,omitempty"`
	Intensity         HeatIntensity `json:"intensity,omitempty"`
	Induced           bool          `json:"induced"`
	InductionProtocol string        `json:"induction_protocol,omitempty"`
	Status            HeatStatus    `json:"status"`
	Notes             string        `json:"notes,omitempty"`
	Audit
}

// WindowStart is the day the service window is measured from: the end of
// the heat when recorded, otherwise the detection day.
func (h *Heat) WindowStart() Date {
	if h.HeatEndDate != nil {
		return *h.HeatEndDate
	}
	return h.HeatDate
}

// Service is a mating or insemination performed during a heat.
type Service struct {
	ID            int64       `json:"id"`
	SowID         int64       `json:"sow_id"`
	HeatID        int64       `json:"heat_id"`
	BoarID        *int64      `json:"boar_id,omitempty"`
	ServiceDate   Date        `json:"service_date"`
	ServiceNumber int         `json:"service_number"`
	ServiceType   ServiceType `json:"service_type"`

	// natural only
	MatingDurationMinutes *int   `json:"mating_duration_minutes,omitempty"`
	MatingQuality         string `json:"mating_quality,omitempty"`

	// artificial only
	InseminationType   string              `json:"insemination_type,omitempty"`
	SemenDoseCode      string              `json:"semen_dose_code,omitempty"`
	SemenVolumeML      decimal.NullDecimal `json:"semen_volume_ml"`
	SemenConcentration decimal.NullDecimal `json:"semen_concentration"`

	TechnicianName string `json:"technician_name,omitempty"`
	Success        *bool  `json:"success,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Audit
}

// normalize clears the fields that belong to the other service type.
func (s *Service) normalize() {
	switch s.ServiceType {
	case ServiceNatural:
		s.InseminationType = ""
		s.SemenDoseCode = ""
		s.SemenVolumeML = decimal.NullDecimal{}
		s.SemenConcentration = decimal.NullDecimal{}
	case ServiceArtificial:
		s.MatingDurationMinutes = nil
		s.MatingQuality = ""
	}
}

// Pregnancy is a gestation started by a service.
type Pregnancy struct {
	ID                    int64              `json:"id"`
	SowID                 int64              `json:"sow_id"`
	ServiceID             int64              `json:"service_id"`
	ConceptionDate        Date               `json:"conception_date"`
	ExpectedFarrowingDate Date               `json:"expected_farrowing_date"`
	Confirmed             bool               `json:"confirmed"`
	ConfirmationDate      *Date              `json:"confirmation_date,omitempty"`
	ConfirmationMethod    ConfirmationMethod `json:"confirmation_method,omitempty"`
	Status                PregnancyStatus    `json:"status"`
	UltrasoundCount       int                `json:"ultrasound_count"`
	LastUltrasoundDate    *Date              `json:"last_ultrasound_date,omitempty"`
	EstimatedPiglets      *int               `json:"estimated_piglets,omitempty"`
	Notes                 string             `json:"notes,omitempty"`
	Audit
}

// Birth is a farrowing event and the litter it produced.
type Birth struct {
	ID                  int64               `json:"id"`
	SowID               int64               `json:"sow_id"`
	PregnancyID         int64               `json:"pregnancy_id"`
	BoarID              *int64              `json:"boar_id,omitempty"`
	BirthDate           Date                `json:"birth_date"`
	GestationDays       int                 `json:"gestation_days"`
	BirthType           BirthType           `json:"birth_type"`
	TotalBorn           int                 `json:"total_born"`
	BornAlive           int                 `json:"born_alive"`
	BornDead            int                 `json:"born_dead"`
	Mummified           int                 `json:"mummified"`
	Malformed           int                 `json:"malformed"`
	TotalLitterWeight   decimal.NullDecimal `json:"total_litter_weight"`
	AvgPigletWeight     decimal.NullDecimal `json:"avg_piglet_weight"`
	ExpectedWeaningDate *Date               `json:"expected_weaning_date,omitempty"`
	WeanedOn            *Date               `json:"weaned_on,omitempty"`
	Notes               string              `json:"notes,omitempty"`
	Audit
}

// Abortion is a pregnancy loss.
type Abortion struct {
	ID              int64  `json:"id"`
	SowID           int64  `json:"sow_id"`
	PregnancyID     int64  `json:"pregnancy_id"`
	AbortionDate    Date   `json:"abortion_date"`
	GestationDays   int    `json:"gestation_days"`
	FetusesExpelled *int   `json:"fetuses_expelled,omitempty"`
	ProbableCause   string `json:"probable_cause,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Audit
}

// Piglet is an individually tracked member of a litter.
type Piglet struct {
	ID            int64               `json:"id"`
	BirthID       int64               `json:"birth_id"`
	SowID         int64               `json:"sow_id"`
	EarTag        string              `json:"ear_tag,omitempty"`
	Sex           PigletSex           `json:"sex,omitempty"`
	BirthOrder    *int                `json:"birth_order,omitempty"`
	BirthWeight   decimal.NullDecimal `json:"birth_weight"`
	BirthStatus   PigletBirthStatus   `json:"birth_status"`
	CurrentStatus PigletStatus        `json:"current_status"`
	WeaningDate   *Date               `json:"weaning_date,omitempty"`
	WeaningWeight decimal.NullDecimal `json:"weaning_weight"`
	Notes         string              `json:"notes,omitempty"`
	Audit
}

// =============================================================================
// CALENDAR AND NOTIFICATIONS
// =============================================================================

type CalendarEventType string

const (
	EventCustom      CalendarEventType = "custom"
	EventVaccination CalendarEventType = "vaccination"
	EventCheckup     CalendarEventType = "checkup"
	EventWeaning     CalendarEventType = "weaning"
	EventFarrowing   CalendarEventType = "farrowing"
)

// CalendarEvent is a farm task scheduled at a point in time.
type CalendarEvent struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	EventDate   time.Time         `json:"event_date"`
	EventType   CalendarEventType `json:"event_type"`
	Description string            `json:"description,omitempty"`
	Audit
}

type NotificationType string

const (
	NotifyCalendar  NotificationType = "calendar"
	NotifyBirth     NotificationType = "birth"
	NotifyHeat      NotificationType = "heat"
	NotifyPregnancy NotificationType = "pregnancy"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is a farm-wide alert produced by the notification generator.
type Notification struct {
	ID            int64            `json:"id"`
	Type          NotificationType `json:"type"`
	Priority      Priority         `json:"priority"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	ReferenceType string           `json:"reference_type,omitempty"`
	ReferenceID   int64            `json:"reference_id,omitempty"`
	ActionURL     string           `json:"action_url,omitempty"`
	IsRead        bool             `json:"is_read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
