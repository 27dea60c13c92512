package domain

import "time"

// Core domain models. Repository row types live in the postgres adapter;
// keep these decoupled from storage concerns.

// Role is the access role of a platform user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCISO        Role = "ciso"
	RoleOwner       Role = "owner"
	RoleITCommittee Role = "it_committee"
)

// AccessStatus gates whether a user may act at all.
type AccessStatus string

const (
	AccessGranted    AccessStatus = "granted"
	AccessRestricted AccessStatus = "restricted"
)

// OrgTier is the regulated-entity class that gates control applicability.
type OrgTier string

const (
	TierMII        OrgTier = "RE_MII"
	TierQualified  OrgTier = "RE_QUALIFIED"
	TierMidSized   OrgTier = "RE_MID_SIZED"
	TierSmallSized OrgTier = "RE_SMALL_SIZED"
	TierSelfCert   OrgTier = "RE_SELF_CERT"
)

// OrgTiers lists every known tier, in display order.
var OrgTiers = []OrgTier{TierMII, TierQualified, TierMidSized, TierSmallSized, TierSelfCert}

// ValidTier reports whether t names a known organization tier.
func ValidTier(t OrgTier) bool {
	for _, k := range OrgTiers {
		if k == t {
			return true
		}
	}
	return false
}

// Goals are the four top-level goal categories a control belongs to.
var Goals = []string{"ANTICIPATE", "WITHSTAND AND CONTAIN", "RECOVER", "EVOLVE"}

// Functions are the seven framework functions a control maps to.
var Functions = []string{"GOVERNANCE", "IDENTIFY", "PROTECT", "DETECT", "RESPOND", "RECOVER", "EVOLVE"}

// Applicability holds the per-tier YES/NO flags of a control.
type Applicability struct {
	MII        string
	Qualified  string
	MidSized   string
	SmallSized string
	SelfCert   string
}

// AppliesTo reports whether the control is flagged YES for the tier.
func (a Applicability) AppliesTo(t OrgTier) bool {
	var v string
	switch t {
	case TierMII:
		v = a.MII
	case TierQualified:
		v = a.Qualified
	case TierMidSized:
		v = a.MidSized
	case TierSmallSized:
		v = a.SmallSized
	case TierSelfCert:
		v = a.SelfCert
	}
	return v == "YES"
}

// Control is a regulatory requirement item, unique per financial year.
// Controls are immutable once referenced by an assignment; there is no
// update path.
type Control struct {
	ID             string
	ControlID      string
	FinancialYear  string
	Goal           string
	Function       string
	Description    string
	Guidance       string
	SampleEvidence string
	Standard       string
	Guideline      string
	Frequency      string
	BeginEnd       string // "B" or "E"
	Applicability  Applicability
	ControlStatus  string // "A" active
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Frequency is how often an evidence artifact must be produced.
type Frequency string

const (
	FreqMonthly   Frequency = "Monthly"
	FreqQuarterly Frequency = "Quarterly"
	FreqYearly    Frequency = "Yearly"
	FreqAdHoc     Frequency = "Ad-hoc"
)

// ValidFrequency reports whether f is one of the four known frequencies.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqMonthly, FreqQuarterly, FreqYearly, FreqAdHoc:
		return true
	}
	return false
}

// EvidenceFile is a single uploaded document under an assignment.
type EvidenceFile struct {
	ID         string
	FileName   string
	URL        string
	Status     FileStatus
	Comment    string // reviewer comment, set on rejection
	UploadedAt time.Time
}

// Assignment maps one evidence requirement of one control to one owner.
// Status is derived from the file set (see DeriveStatus); Version backs
// the optimistic check-and-increment on status writes.
type Assignment struct {
	ID           string
	Owner        string
	ControlID    string
	Goal         string
	Function     string
	Description  string
	Guidance     string
	EvidenceName string
	Frequency    Frequency
	Files        []EvidenceFile
	Status       AssignmentStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChangeRecord is one ordered entry in an evidence's reassignment
// history: which field changed, from what, to what, and when.
type ChangeRecord struct {
	Field     string // "owner" or "frequency"
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}

// ReuploadRecord is one re-upload of an already-submitted file.
type ReuploadRecord struct {
	URL        string
	UploadedAt time.Time
}

// ReviewRecord is one reviewer decision on an upload.
type ReviewRecord struct {
	Action     string // "approved" or "rejected"
	Comment    string
	ReviewedAt time.Time
}

// UploadRecord is the audit-side record of a document upload, keeping
// every re-upload and review decision in order.
type UploadRecord struct {
	ID              string
	AuditEvidenceID string
	Period          Period
	FileName        string
	URL             string
	UploadedBy      string
	UploadedAt      time.Time
	Reuploads       []ReuploadRecord
	Reviews         []ReviewRecord
}

// AuditEvidence is the per-evidence node of an audit trail.
type AuditEvidence struct {
	ID           string
	EvidenceName string
	Frequency    Frequency
	Owner        string
	AssignedDate time.Time
	Changes      []ChangeRecord
	Uploads      []UploadRecord
	RiskStatus   string // "risk" when flagged
	RiskComment  string
	RiskAt       *time.Time
}

// CurrentOwner is the owner after applying the change history.
func (e AuditEvidence) CurrentOwner() string {
	v := e.Owner
	for _, c := range e.Changes {
		if c.Field == "owner" {
			v = c.NewValue
		}
	}
	return v
}

// CurrentFrequency is the frequency after applying the change history.
func (e AuditEvidence) CurrentFrequency() Frequency {
	v := e.Frequency
	for _, c := range e.Changes {
		if c.Field == "frequency" {
			v = Frequency(c.NewValue)
		}
	}
	return v
}

// AuditTrail is the append-only history for one control under one CISO.
type AuditTrail struct {
	ID        string
	CISO      string
	ControlID string
	Evidences []AuditEvidence
	CreatedAt time.Time
}

// RiskEntry is a risk-register row: either an assignment flagged as risk
// (RiskType "control") or a manually recorded risk (RiskType "other").
type RiskEntry struct {
	ID          string
	RiskType    string // "control" or "other"
	ControlID   string
	Description string
	Category    string
	Date        string
	Owner       string
	Status      string // always "risk"
	CreatedAt   time.Time
}

// User is a platform account.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             Role
	CompanyName      string
	OrganizationType OrgTier
	Status           AccessStatus
	CreatedAt        time.Time
}
