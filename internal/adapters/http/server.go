package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PsiTechC/apex/internal/ports"
	"github.com/PsiTechC/apex/internal/services/assignments"
	"github.com/PsiTechC/apex/internal/services/catalog"
	"github.com/PsiTechC/apex/internal/services/dashboard"
	"github.com/PsiTechC/apex/internal/services/evidence"
	"github.com/PsiTechC/apex/internal/services/training"
	"github.com/PsiTechC/apex/internal/services/users"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	catalog     *catalog.Service
	assignments *assignments.Service
	evidence    *evidence.Service
	dashboard   *dashboard.Service
	users       *users.Service
	training    *training.Service
	userRepo    ports.UserRepository
	log         *slog.Logger
}

// Services groups the constructor dependencies of NewRouter.
type Services struct {
	Catalog     *catalog.Service
	Assignments *assignments.Service
	Evidence    *evidence.Service
	Dashboard   *dashboard.Service
	Users       *users.Service
	Training    *training.Service
	UserRepo    ports.UserRepository
}

func NewRouter(s Services, log *slog.Logger) http.Handler {
	h := &Handler{
		catalog:     s.Catalog,
		assignments: s.Assignments,
		evidence:    s.Evidence,
		dashboard:   s.Dashboard,
		users:       s.Users,
		training:    s.Training,
		userRepo:    s.UserRepo,
		log:         log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)

	r.Route("/api", func(api chi.Router) {
		api.With(h.requireAuth("catalog:write")).Post("/admin/controls", h.handleAddControl)
		api.With(h.requireAuth("catalog:read")).Get("/controls", h.handleListControls)

		api.With(h.requireAuth("users:manage")).Post("/admin/users", h.handleCreateCISO)
		api.With(h.requireAuth("users:manage")).Get("/admin/users", h.handleListUsers)
		api.With(h.requireAuth("users:manage")).Post("/admin/users/access", h.handleUpdateAccess)

		api.With(h.requireAuth("members:manage")).Post("/ciso/members", h.handleCreateMember)
		api.With(h.requireAuth("members:manage")).Get("/ciso/members", h.handleListMembers)
		api.With(h.requireAuth("members:manage")).Post("/ciso/members/delete", h.handleDeleteMember)

		api.With(h.requireAuth("assignments:write")).Post("/ciso/assignments", h.handleAssign)
		api.With(h.requireAuth("assignments:read")).Get("/assignments", h.handleListAssignments)

		api.With(h.requireAuth("dashboard:read")).Get("/ciso/dashboard", h.handleDashboard)
		api.With(h.requireAuth("audit:read")).Get("/ciso/audit", h.handleGetTrail)

		api.With(h.requireAuth("evidence:write")).Post("/owner/uploads", h.handleUpload)
		api.With(h.requireAuth("reviews:write")).Post("/ciso/reviews", h.handleReview)

		api.With(h.requireAuth("risks:write")).Post("/ciso/risks", h.handleAddRisk)
		api.With(h.requireAuth("dashboard:read")).Get("/ciso/risks", h.handleListRisks)

		api.With(h.requireAuth("training:write")).Post("/ciso/training/invitations", h.handleTrainingBroadcast)
	})

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
