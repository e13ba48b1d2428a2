package goals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
)

type Handler struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(repo Repository) *Handler {
	return &Handler{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateGoalRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	status := req.Status
	if status == "" {
		status = StatusInProgress
	}
	now := h.now().UTC()
	g := &Goal{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		TargetDate:  req.TargetDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.Create(r.Context(), g); err != nil {
		slog.Error("creating goal", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, g)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	goals, err := h.repo.List(r.Context(), ownerID)
	if err != nil {
		slog.Error("listing goals", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, goals)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, goalID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req UpdateGoalRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	g, err := h.repo.Get(r.Context(), ownerID, goalID)
	if err != nil {
		slog.Error("fetching goal", "error", err, "goal_id", goalID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if g == nil {
		api.HandleError(w, api.NewNotFoundError("goal not found"))
		return
	}

	req.apply(g)
	g.UpdatedAt = h.now().UTC()
	if err := h.repo.Update(r.Context(), g); err != nil {
		slog.Error("updating goal", "error", err, "goal_id", goalID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, g)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, goalID, ok := h.target(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(r.Context(), ownerID, goalID)
	if err != nil {
		slog.Error("deleting goal", "error", err, "goal_id", goalID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !deleted {
		api.HandleError(w, api.NewNotFoundError("goal not found"))
		return
	}

	api.JSONMessage(w, http.StatusOK, "goal deleted successfully")
}

// target resolves the caller and the {goalID} path parameter, writing the error response itself.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (ownerID, goalID uuid.UUID, ok bool) {
	ownerID, ok = auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid goal ID"))
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, goalID, true
}
