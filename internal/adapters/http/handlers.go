package http

import (
	"net/http"
	"strings"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/assignments"
	"github.com/PsiTechC/apex/internal/services/evidence"
)

type controlRequest struct {
	ControlID      string `json:"controlId"`
	FinancialYear  string `json:"financialYear"`
	Goal           string `json:"goal"`
	Function       string `json:"function"`
	Description    string `json:"description"`
	Guidance       string `json:"guidance"`
	SampleEvidence string `json:"sampleEvidence"`
	Standard       string `json:"standard"`
	Guideline      string `json:"guideline"`
	Frequency      string `json:"frequency"`
	BeginEnd       string `json:"beginningEnd"`
	MII            string `json:"reMii"`
	Qualified      string `json:"reQualified"`
	MidSized       string `json:"reMidSized"`
	SmallSized     string `json:"reSmallSized"`
	SelfCert       string `json:"reSelfCert"`
}

func (h *Handler) handleAddControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	c, err := h.catalog.AddControl(r.Context(), domain.Control{
		ControlID:      req.ControlID,
		FinancialYear:  req.FinancialYear,
		Goal:           req.Goal,
		Function:       req.Function,
		Description:    req.Description,
		Guidance:       req.Guidance,
		SampleEvidence: req.SampleEvidence,
		Standard:       req.Standard,
		Guideline:      req.Guideline,
		Frequency:      req.Frequency,
		BeginEnd:       req.BeginEnd,
		Applicability: domain.Applicability{
			MII: req.MII, Qualified: req.Qualified, MidSized: req.MidSized,
			SmallSized: req.SmallSized, SelfCert: req.SelfCert,
		},
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, controlResponse(c))
}

func (h *Handler) handleListControls(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("financialYear")
	tier := domain.OrgTier(r.URL.Query().Get("organizationType"))
	list, err := h.catalog.ListControls(r.Context(), year, tier)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, controlResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func controlResponse(c domain.Control) map[string]any {
	return map[string]any{
		"id":             c.ID,
		"controlId":      c.ControlID,
		"financialYear":  c.FinancialYear,
		"goal":           c.Goal,
		"function":       c.Function,
		"description":    c.Description,
		"guidance":       c.Guidance,
		"sampleEvidence": c.SampleEvidence,
		"standard":       c.Standard,
		"guideline":      c.Guideline,
		"frequency":      c.Frequency,
		"beginningEnd":   c.BeginEnd,
		"reMii":          c.Applicability.MII,
		"reQualified":    c.Applicability.Qualified,
		"reMidSized":     c.Applicability.MidSized,
		"reSmallSized":   c.Applicability.SmallSized,
		"reSelfCert":     c.Applicability.SelfCert,
	}
}

type createCISORequest struct {
	Email            string `json:"email"`
	CompanyName      string `json:"companyName"`
	OrganizationType string `json:"organizationType"`
}

func (h *Handler) handleCreateCISO(w http.ResponseWriter, r *http.Request) {
	var req createCISORequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.users.CreateCISO(r.Context(), req.Email, req.CompanyName, domain.OrgTier(req.OrganizationType))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse(u))
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, u := range list {
		out = append(out, userResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func userResponse(u domain.User) map[string]any {
	return map[string]any{
		"email":            u.Email,
		"role":             u.Role,
		"companyName":      u.CompanyName,
		"organizationType": u.OrganizationType,
		"status":           u.Status,
	}
}

type accessRequest struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

func (h *Handler) handleUpdateAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.users.UpdateAccess(r.Context(), req.Email, domain.AccessStatus(req.Status)); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, "access updated")
}

type createMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	u, err := h.users.CreateMember(r.Context(), actor.Email, req.Email, domain.Role(req.Role))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse(u))
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	list, err := h.users.ListMembers(r.Context(), actor.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, u := range list {
		out = append(out, userResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

type deleteMemberRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req deleteMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.users.DeleteMember(r.Context(), actor.Email, req.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deletedUsers":       res.Users,
		"deletedAssignments": res.Assignments,
		"deletedMemberships": res.Memberships,
	})
}

type assignRequest struct {
	Evidences []assignEvidence `json:"evidences"`
}

type assignEvidence struct {
	Owner        string `json:"owner"`
	ControlID    string `json:"controlId"`
	Goal         string `json:"goal"`
	Function     string `json:"function"`
	Description  string `json:"description"`
	Guidance     string `json:"guidance"`
	EvidenceName string `json:"evidenceName"`
	Frequency    string `json:"frequency"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	batch := make([]assignments.EvidenceInput, 0, len(req.Evidences))
	for _, e := range req.Evidences {
		batch = append(batch, assignments.EvidenceInput{
			Owner:        e.Owner,
			ControlID:    e.ControlID,
			Goal:         e.Goal,
			Function:     e.Function,
			Description:  e.Description,
			Guidance:     e.Guidance,
			EvidenceName: e.EvidenceName,
			Frequency:    domain.Frequency(e.Frequency),
		})
	}
	res, err := h.assignments.Assign(r.Context(), actor.Email, batch)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": res.Created, "updated": res.Updated})
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owners := splitParam(q.Get("owners"))
	var statuses []domain.AssignmentStatus
	for _, s := range splitParam(q.Get("statuses")) {
		statuses = append(statuses, domain.AssignmentStatus(s))
	}
	list, err := h.assignments.ListAssignments(r.Context(), owners, statuses)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, assignmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func assignmentResponse(a domain.Assignment) map[string]any {
	files := make([]map[string]any, 0, len(a.Files))
	for _, f := range a.Files {
		files = append(files, map[string]any{
			"fileName":   f.FileName,
			"url":        f.URL,
			"status":     f.Status,
			"comment":    f.Comment,
			"uploadedAt": f.UploadedAt,
		})
	}
	return map[string]any{
		"id":           a.ID,
		"owner":        a.Owner,
		"controlId":    a.ControlID,
		"goal":         a.Goal,
		"function":     a.Function,
		"description":  a.Description,
		"guidance":     a.Guidance,
		"evidenceName": a.EvidenceName,
		"frequency":    a.Frequency,
		"status":       a.Status,
		"files":        files,
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owners := splitParam(q.Get("owners"))
	tier := domain.OrgTier(q.Get("organizationType"))
	ov, err := h.dashboard.Build(r.Context(), owners, tier)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	pending := make([]map[string]any, 0, len(ov.PendingByOwner))
	for _, p := range ov.PendingByOwner {
		list := make([]map[string]any, 0, len(p.Assignments))
		for _, a := range p.Assignments {
			list = append(list, assignmentResponse(a))
		}
		pending = append(pending, map[string]any{"owner": p.Owner, "assignments": list})
	}
	out := map[string]any{
		"counts":         ov.Counts,
		"total":          ov.Total,
		"pendingByOwner": pending,
	}
	if ov.Tier != nil {
		out["controls"] = map[string]any{
			"organizationType": ov.Tier.Tier,
			"total":            ov.Tier.Total,
			"byGoal":           ov.Tier.ByGoal,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	trail, err := h.assignments.GetTrail(r.Context(), actor.Email, r.URL.Query().Get("controlId"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, trailResponse(trail))
}

func trailResponse(t domain.AuditTrail) map[string]any {
	evidences := make([]map[string]any, 0, len(t.Evidences))
	for _, ev := range t.Evidences {
		changes := make([]map[string]any, 0, len(ev.Changes))
		for _, c := range ev.Changes {
			changes = append(changes, map[string]any{
				"field": c.Field, "oldValue": c.OldValue, "newValue": c.NewValue, "changedAt": c.ChangedAt,
			})
		}
		uploads := make([]map[string]any, 0, len(ev.Uploads))
		for _, up := range ev.Uploads {
			reuploads := make([]map[string]any, 0, len(up.Reuploads))
			for _, ru := range up.Reuploads {
				reuploads = append(reuploads, map[string]any{"url": ru.URL, "uploadedAt": ru.UploadedAt})
			}
			reviews := make([]map[string]any, 0, len(up.Reviews))
			for _, rv := range up.Reviews {
				reviews = append(reviews, map[string]any{
					"action": rv.Action, "comment": rv.Comment, "reviewedAt": rv.ReviewedAt,
				})
			}
			uploads = append(uploads, map[string]any{
				"period":     up.Period,
				"fileName":   up.FileName,
				"url":        up.URL,
				"uploadedBy": up.UploadedBy,
				"uploadedAt": up.UploadedAt,
				"reuploads":  reuploads,
				"reviews":    reviews,
			})
		}
		evidences = append(evidences, map[string]any{
			"evidenceName": ev.EvidenceName,
			"frequency":    ev.Frequency,
			"owner":        ev.Owner,
			"assignedDate": ev.AssignedDate,
			"changes":      changes,
			"uploads":      uploads,
			"riskStatus":   ev.RiskStatus,
			"riskComment":  ev.RiskComment,
		})
	}
	return map[string]any{
		"ciso":      t.CISO,
		"controlId": t.ControlID,
		"evidences": evidences,
	}
}

type uploadRequest struct {
	Email string `json:"email"`
	Files []struct {
		FileName string `json:"fileName"`
		Base64   string `json:"base64PDF"`
	} `json:"files"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req uploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	// The body email is informational only; uploads always run as the
	// authenticated actor, and a mismatching body email is refused.
	if e := strings.ToLower(strings.TrimSpace(req.Email)); e != "" && e != actor.Email {
		writeMessage(w, http.StatusBadRequest, "email does not match the authenticated actor")
		return
	}
	files := make([]evidence.FileInput, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, evidence.FileInput{FileName: f.FileName, Base64: f.Base64})
	}
	res, err := h.evidence.Upload(r.Context(), actor.Email, files)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uploaded":   res.Uploaded,
		"reuploaded": res.Reuploaded,
	})
}

type reviewRequest struct {
	Action   string   `json:"action"`
	Comment  string   `json:"comment"`
	FileURLs []string `json:"fileUrls"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.evidence.Review(r.Context(), actor.Email, req.Action, req.Comment, req.FileURLs)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reviewed": res.Reviewed})
}

type riskRequest struct {
	RiskType    string `json:"riskType"`
	ControlID   string `json:"controlId"`
	Description string `json:"description"`
	Category    string `json:"type"`
	Date        string `json:"date"`
	Owner       string `json:"owner"`
}

func (h *Handler) handleAddRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	entry, err := h.evidence.AddRisk(r.Context(), domain.RiskEntry{
		RiskType:    req.RiskType,
		ControlID:   req.ControlID,
		Description: req.Description,
		Category:    req.Category,
		Date:        req.Date,
		Owner:       req.Owner,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, riskResponse(entry))
}

func (h *Handler) handleListRisks(w http.ResponseWriter, r *http.Request) {
	list, err := h.evidence.ListRisks(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		out = append(out, riskResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func riskResponse(e domain.RiskEntry) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"riskType":    e.RiskType,
		"controlId":   e.ControlID,
		"description": e.Description,
		"type":        e.Category,
		"date":        e.Date,
		"owner":       e.Owner,
		"status":      e.Status,
	}
}

type trainingRequest struct {
	CSVText string `json:"csvText"`
}

func (h *Handler) handleTrainingBroadcast(w http.ResponseWriter, r *http.Request) {
	var req trainingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.training.Broadcast(r.Context(), req.CSVText)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"testId":  res.TestID,
		"queued":  res.Queued,
		"skipped": res.Skipped,
	})
}

func splitParam(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
