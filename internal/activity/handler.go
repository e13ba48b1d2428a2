package activity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
)

// Lister is satisfied by *Repository.
type Lister interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) ([]Entry, int64, error)
}

type Handler struct {
	repo Lister
}

func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// List serves GET /activity with optional event_type, severity, from and to (RFC 3339) filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	params := ListParams{EventType: q.Get("event_type"), Severity: q.Get("severity")}
	params.Page, params.PageSize = api.Pagination(r)

	for name, dst := range map[string]**time.Time{"from": &params.From, "to": &params.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid "+name+" timestamp"))
			return
		}
		*dst = &t
	}

	entries, total, err := h.repo.ListByOwner(r.Context(), ownerID, params)
	if err != nil {
		slog.Error("listing activity", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, entries, total, params.Page, params.PageSize)
}
