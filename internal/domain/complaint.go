package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "PENDING"
	ComplaintStatusInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintStatusResolved   ComplaintStatus = "RESOLVED"
	ComplaintStatusRejected   ComplaintStatus = "REJECTED"
	ComplaintStatusClosed     ComplaintStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible from s.
func (s ComplaintStatus) Terminal() bool {
	return s == ComplaintStatusResolved || s == ComplaintStatusRejected || s == ComplaintStatusClosed
}

var allowedTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintStatusPending:    {ComplaintStatusInProgress, ComplaintStatusResolved, ComplaintStatusRejected, ComplaintStatusClosed},
	ComplaintStatusInProgress: {ComplaintStatusResolved, ComplaintStatusRejected, ComplaintStatusClosed},
	ComplaintStatusResolved:   {},
	ComplaintStatusRejected:   {},
	ComplaintStatusClosed:     {},
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next ComplaintStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ComplaintType classifies the nature of a complaint.
type ComplaintType string

const (
	ComplaintTypeServiceQuality ComplaintType = "SERVICE_QUALITY"
	ComplaintTypeCorruption     ComplaintType = "CORRUPTION"
	ComplaintTypeDelay          ComplaintType = "DELAY"
	ComplaintTypeInfrastructure ComplaintType = "INFRASTRUCTURE"
	ComplaintTypeBilling        ComplaintType = "BILLING"
	ComplaintTypeOther          ComplaintType = "OTHER"
)

var complaintTypes = map[ComplaintType]struct{}{
	ComplaintTypeServiceQuality: {},
	ComplaintTypeCorruption:     {},
	ComplaintTypeDelay:          {},
	ComplaintTypeInfrastructure: {},
	ComplaintTypeBilling:        {},
	ComplaintTypeOther:          {},
}

func (t ComplaintType) Valid() bool {
	_, ok := complaintTypes[t]
	return ok
}

// Governorate is the administrative region a complaint refers to.
type Governorate string

const (
	GovernorateDamascus   Governorate = "DAMASCUS"
	GovernorateRifDimashq Governorate = "RIF_DIMASHQ"
	GovernorateAleppo     Governorate = "ALEPPO"
	GovernorateHoms       Governorate = "HOMS"
	GovernorateHama       Governorate = "HAMA"
	GovernorateLatakia    Governorate = "LATAKIA"
	GovernorateTartus     Governorate = "TARTUS"
	GovernorateIdlib      Governorate = "IDLIB"
	GovernorateDaraa      Governorate = "DARAA"
	GovernorateSuwayda    Governorate = "AS_SUWAYDA"
	GovernorateQuneitra   Governorate = "QUNEITRA"
	GovernorateDeirEzZor  Governorate = "DEIR_EZ_ZOR"
	GovernorateHasakah    Governorate = "AL_HASAKAH"
	GovernorateRaqqa      Governorate = "RAQQA"
)

var governorates = map[Governorate]struct{}{
	GovernorateDamascus: {}, GovernorateRifDimashq: {}, GovernorateAleppo: {}, GovernorateHoms: {},
	GovernorateHama: {}, GovernorateLatakia: {}, GovernorateTartus: {}, GovernorateIdlib: {},
	GovernorateDaraa: {}, GovernorateSuwayda: {}, GovernorateQuneitra: {}, GovernorateDeirEzZor: {},
	GovernorateHasakah: {}, GovernorateRaqqa: {},
}

func (g Governorate) Valid() bool {
	_, ok := governorates[g]
	return ok
}

// GovernmentAgency is the agency a complaint is addressed to.
type GovernmentAgency string

const (
	AgencyHealth        GovernmentAgency = "MINISTRY_OF_HEALTH"
	AgencyEducation     GovernmentAgency = "MINISTRY_OF_EDUCATION"
	AgencyInterior      GovernmentAgency = "MINISTRY_OF_INTERIOR"
	AgencyTransport     GovernmentAgency = "MINISTRY_OF_TRANSPORT"
	AgencyElectricity   GovernmentAgency = "MINISTRY_OF_ELECTRICITY"
	AgencyWater         GovernmentAgency = "MINISTRY_OF_WATER_RESOURCES"
	AgencyCommunication GovernmentAgency = "MINISTRY_OF_COMMUNICATIONS"
	AgencyMunicipality  GovernmentAgency = "MUNICIPALITY"
)

var agencies = map[GovernmentAgency]struct{}{
	AgencyHealth: {}, AgencyEducation: {}, AgencyInterior: {}, AgencyTransport: {},
	AgencyElectricity: {}, AgencyWater: {}, AgencyCommunication: {}, AgencyMunicipality: {},
}

func (a GovernmentAgency) Valid() bool {
	_, ok := agencies[a]
	return ok
}

// Complaint is the aggregate root for citizen complaints.
type Complaint struct {
	ID                 string
	TrackingNumber     string
	CitizenID          string
	ComplaintType      ComplaintType
	Governorate        Governorate
	GovernmentAgency   GovernmentAgency
	Location           string
	Description        string
	SolutionSuggestion string
	Status             ComplaintStatus
	Response           string
	RespondedAt        *time.Time
	RespondedByID      *string
	RespondedByName    string
	Version            int64
	Attachments        []Attachment
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLocked reports whether an employee currently holds the complaint for editing.
// The lock has no storage of its own; it is derived from Status and RespondedByID.
func (c *Complaint) IsLocked() bool {
	return c.Status == ComplaintStatusInProgress && c.RespondedByID != nil
}

// LockedAgainst reports whether the lock blocks the given employee.
func (c *Complaint) LockedAgainst(employeeID string) bool {
	return c.IsLocked() && *c.RespondedByID != employeeID
}

// Attachment is a file owned by a complaint and deleted with it.
type Attachment struct {
	ID          string
	ComplaintID string
	FileName    string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	UploadedBy  string
	CreatedAt   time.Time
}
