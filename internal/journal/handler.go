package journal

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
	"github.com/futureecho/futureecho/internal/memory"
)

type Handler struct {
	repo     Repository
	indexer  memory.Indexer
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(repo Repository, indexer memory.Indexer) *Handler {
	return &Handler{
		repo:     repo,
		indexer:  indexer,
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

	var req EntryRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	now := h.now().UTC()
	e := &Entry{ID: uuid.New(), OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	req.apply(e)

	if err := h.repo.Create(r.Context(), e); err != nil {
		slog.Error("creating journal entry", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.indexer.Index(r.Context(), e.IndexJob())
	api.JSON(w, http.StatusCreated, e)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	page, pageSize := api.Pagination(r)
	params := ListParams{Page: page, PageSize: pageSize, Tag: r.URL.Query().Get("tag")}

	entries, total, err := h.repo.List(r.Context(), ownerID, params)
	if err != nil {
		slog.Error("listing journal entries", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, entries, total, page, pageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, e)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	e, ok := h.load(w, r)
	if !ok {
		return
	}

	req.apply(e)
	if err := h.repo.Update(r.Context(), e); err != nil {
		if errors.Is(err, ErrNotFound) {
			api.HandleError(w, api.NewNotFoundError("entry not found"))
			return
		}
		slog.Error("updating journal entry", "error", err, "entry_id", e.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.indexer.Index(r.Context(), e.IndexJob())
	api.JSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid entry ID"))
		return
	}

	deleted, err := h.repo.Delete(r.Context(), ownerID, entryID)
	if err != nil {
		slog.Error("deleting journal entry", "error", err, "entry_id", entryID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !deleted {
		api.HandleError(w, api.NewNotFoundError("entry not found"))
		return
	}

	h.indexer.Remove(r.Context(), memory.Job{
		Op:          memory.OpDelete,
		Key:         memory.Key{OwnerID: ownerID, SourceType: memory.SourceJournal, SourceID: entryID},
		RequestedAt: h.now().UTC(),
	})
	api.JSONMessage(w, http.StatusOK, "entry deleted successfully")
}

// load fetches the {entryID} entry of the caller, writing the error response itself.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return nil, false
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid entry ID"))
		return nil, false
	}

	e, err := h.repo.Get(r.Context(), ownerID, entryID)
	if err != nil {
		slog.Error("fetching journal entry", "error", err, "entry_id", entryID)
		api.HandleError(w, api.ErrInternalServer)
		return nil, false
	}
	if e == nil {
		api.HandleError(w, api.NewNotFoundError("entry not found"))
		return nil, false
	}
	return e, true
}
