package memory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/futureecho/futureecho/internal/api"
	"github.com/futureecho/futureecho/internal/auth"
	"github.com/futureecho/futureecho/internal/embedding"
)

// ReindexSource lists the index jobs that rebuild an owner's memories from their sources.
type ReindexSource interface {
	IndexJobs(ctx context.Context, ownerID uuid.UUID) ([]Job, error)
}

// Handler handles memory HTTP endpoints.
type Handler struct {
	retriever *Retriever
	indexer   Indexer
	sources   ReindexSource
	validate  *validator.Validate
}

func NewHandler(retriever *Retriever, indexer Indexer, sources ReindexSource) *Handler {
	return &Handler{
		retriever: retriever,
		indexer:   indexer,
		sources:   sources,
		validate:  validator.New(),
	}
}

// Search ranks the caller's memories against a free-text query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req SearchRequest
	if err := api.DecodeAndValidate(r, h.validate, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = h.retriever.topK
	}
	minSim := h.retriever.minSimilarity
	if req.MinSimilarity != nil {
		minSim = *req.MinSimilarity
	}

	results, err := h.retriever.Retrieve(r.Context(), ownerID, req.Query, topK, minSim)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			api.HandleError(w, api.ErrServiceUnavailable)
			return
		}
		slog.Error("searching memories", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, results)
}

// Reindex queues an upsert for every source item the caller owns and a removal
// for every record whose source no longer exists.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	// Records are listed before sources: a record implies its source already
	// existed, so an entry created in between is never taken for an orphan.
	records, err := h.retriever.records.AllFor(r.Context(), ownerID)
	if err != nil {
		slog.Error("listing memory records", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	jobs, err := h.sources.IndexJobs(r.Context(), ownerID)
	if err != nil {
		slog.Error("listing reindex jobs", "error", err, "owner_id", ownerID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	live := make(map[Key]struct{}, len(jobs))
	for _, job := range jobs {
		live[job.Key] = struct{}{}
		h.indexer.Index(r.Context(), job)
	}

	pruned := 0
	for _, rec := range records {
		if _, ok := live[rec.Key]; ok {
			continue
		}
		h.indexer.Remove(r.Context(), Job{Op: OpDelete, Key: rec.Key})
		pruned++
	}

	slog.Info("memory reindex queued", "owner_id", ownerID, "jobs", len(jobs), "pruned", pruned)
	api.JSON(w, http.StatusAccepted, map[string]int{"queued": len(jobs), "pruned": pruned})
}
