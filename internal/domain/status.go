package domain

// FileStatus is the review state of a single uploaded file.
type FileStatus string

const (
	FilePending  FileStatus = "pending"
	FileApproved FileStatus = "approved"
	FileRejected FileStatus = "rejected"
)

// AssignmentStatus is the rollup state of an assignment.
type AssignmentStatus string

const (
	StatusPending           AssignmentStatus = "pending"
	StatusPendingApproval   AssignmentStatus = "pending-approval"
	StatusApproved          AssignmentStatus = "approved"
	StatusPartiallyApproved AssignmentStatus = "partially-approved"
	StatusRisk              AssignmentStatus = "risk"
)

// ActiveStatuses are the four non-risk states shown on the dashboard;
// risk assignments are filtered out of active lists.
var ActiveStatuses = []AssignmentStatus{
	StatusPending,
	StatusPendingApproval,
	StatusPartiallyApproved,
	StatusApproved,
}

// ValidStatus reports whether st is a known assignment status.
func ValidStatus(st AssignmentStatus) bool {
	switch st {
	case StatusPending, StatusPendingApproval, StatusApproved, StatusPartiallyApproved, StatusRisk:
		return true
	}
	return false
}

// DeriveStatus computes the rollup status of an assignment from its
// file set. It is the single source of truth for the derivation rule:
//
//	no files                  -> pending
//	every file approved       -> approved
//	at least one rejected     -> partially-approved
//	otherwise                 -> pending-approval
//
// The risk override is applied at the assignment level by the caller,
// never here: a risk flag is sticky regardless of file states.
func DeriveStatus(files []EvidenceFile) AssignmentStatus {
	if len(files) == 0 {
		return StatusPending
	}
	allApproved := true
	anyRejected := false
	for _, f := range files {
		if f.Status != FileApproved {
			allApproved = false
		}
		if f.Status == FileRejected {
			anyRejected = true
		}
	}
	switch {
	case allApproved:
		return StatusApproved
	case anyRejected:
		return StatusPartiallyApproved
	default:
		return StatusPendingApproval
	}
}
