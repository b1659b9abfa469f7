package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/api/shared"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/service"
)

// ConceptHandler handles concept hierarchy and mind map HTTP requests.
type ConceptHandler struct {
	service service.ConceptService
	logger  *slog.Logger
}

// NewConceptHandler creates a new ConceptHandler.
func NewConceptHandler(svc service.ConceptService, logger *slog.Logger) *ConceptHandler {
	if svc == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("concept service cannot be nil for ConceptHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ConceptHandler")
	}
	return &ConceptHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "concept_handler")),
	}
}

// Routes returns the handler's routes, relative to the API prefix.
func (h *ConceptHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/domains/{domainID}", func(r chi.Router) {
		r.Get("/concepts", h.ListConcepts)
		r.Post("/concepts", h.CreateConcept)
		r.Get("/concepts/tree", h.GetTree)
		r.Post("/concepts/status", h.BulkSetStatus)
		r.Put("/concepts/order", h.ReorderConcepts)
		r.Patch("/concepts/{conceptID}", h.UpdateConcept)
		r.Delete("/concepts/{conceptID}", h.DeleteConcept)
		r.Put("/concepts/{conceptID}/status", h.SetStatus)
		r.Get("/concepts/{conceptID}/can-reparent", h.CanReparent)
		r.Put("/concepts/{conceptID}/parent", h.Reparent)
		r.Post("/concepts/{conceptID}/move-up", h.MoveUp)
		r.Post("/concepts/{conceptID}/move-down", h.MoveDown)

		r.Get("/layout", h.GetLayout)
		r.Put("/layout", h.SaveLayout)
		r.Post("/layout/reset", h.ResetLayout)
		r.Put("/layout/nodes/{conceptID}/drag", h.Drag)
		r.Put("/layout/nodes/{conceptID}/drag-end", h.DragEnd)

		r.Post("/refresh", h.Refresh)
	})
	return r
}

// ListConcepts handles GET /domains/{domainID}/concepts.
func (h *ConceptHandler) ListConcepts(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	concepts, err := h.service.Concepts(r.Context(), domainID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load concepts")
		return
	}
	if concepts == nil {
		concepts = []*domain.Concept{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ConceptListResponse{DomainID: domainID, Concepts: concepts})
}

// GetTree handles GET /domains/{domainID}/concepts/tree.
func (h *ConceptHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	roots, err := h.service.Tree(r.Context(), domainID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load concept tree")
		return
	}
	if roots == nil {
		roots = []*hierarchy.Node{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TreeResponse{DomainID: domainID, Roots: roots})
}

// CreateConcept handles POST /domains/{domainID}/concepts.
func (h *ConceptHandler) CreateConcept(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	var req CreateConceptRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	created, err := h.service.CreateConcept(r.Context(), domainID, hierarchy.NewConceptFields{
		ParentID:        req.ParentID,
		Name:            req.Name,
		Description:     req.Description,
		Status:          domain.ConceptStatus(req.Status),
		Source:          domain.ConceptSource(req.Source),
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create concept")
		return
	}

	log.Debug("concept created",
		slog.String("domain_id", domainID.String()),
		slog.String("concept_id", created.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, created)
}

// UpdateConcept handles PATCH /domains/{domainID}/concepts/{conceptID}.
func (h *ConceptHandler) UpdateConcept(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	var req UpdateConceptRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}
	if req.Name == nil && req.Description == nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No fields to update")
		return
	}

	updated, err := h.service.UpdateConcept(r.Context(), domainID, conceptID, hierarchy.FieldsUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update concept")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// SetStatus handles PUT /domains/{domainID}/concepts/{conceptID}/status.
func (h *ConceptHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	var req SetStatusRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	updated, err := h.service.SetStatus(r.Context(), domainID, conceptID, domain.ConceptStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update concept status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// BulkSetStatus handles POST /domains/{domainID}/concepts/status.
// Per-id failures are reported in the body; the request itself succeeds.
func (h *ConceptHandler) BulkSetStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	var req BulkStatusRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	results, err := h.service.BulkSetStatus(r.Context(), domainID, req.IDs, domain.ConceptStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update concept statuses")
		return
	}

	resp := BulkResponse{Results: make([]ItemResult, 0, len(results))}
	for _, res := range results {
		item := ItemResult{ID: res.ID, Concept: res.Concept}
		if res.Err != nil {
			item.Error = GetSafeErrorMessage(res.Err)
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	if resp.Failed > 0 {
		log.Warn("bulk status change partly failed",
			slog.String("domain_id", domainID.String()),
			slog.Int("failed", resp.Failed),
			slog.Int("total", len(results)))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CanReparent handles GET /domains/{domainID}/concepts/{conceptID}/can-reparent.
// The optional parent_concept_id query parameter names the target; absent means root.
func (h *ConceptHandler) CanReparent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}
	parentID, err := getQueryUUID(r, "parent_concept_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	allowed, err := h.service.CanReparent(r.Context(), domainID, conceptID, parentID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check concept move")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CanReparentResponse{Allowed: allowed})
}

// Reparent handles PUT /domains/{domainID}/concepts/{conceptID}/parent.
func (h *ConceptHandler) Reparent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	var req ReparentRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	updated, err := h.service.Reparent(r.Context(), domainID, conceptID, req.ParentID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to move concept")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// MoveUp handles POST /domains/{domainID}/concepts/{conceptID}/move-up.
func (h *ConceptHandler) MoveUp(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.MoveUp)
}

// MoveDown handles POST /domains/{domainID}/concepts/{conceptID}/move-down.
func (h *ConceptHandler) MoveDown(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.MoveDown)
}

func (h *ConceptHandler) move(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, domainID, id uuid.UUID) (bool, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	moved, err := fn(r.Context(), domainID, conceptID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reorder concept")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MoveResponse{Moved: moved})
}

// ReorderConcepts handles PUT /domains/{domainID}/concepts/order.
func (h *ConceptHandler) ReorderConcepts(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	var req ReorderRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	if err := h.service.Reorder(r.Context(), domainID, req.ParentID, req.OrderedIDs); err != nil {
		HandleAPIError(w, r, err, "Failed to reorder concepts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteConcept handles DELETE /domains/{domainID}/concepts/{conceptID}.
func (h *ConceptHandler) DeleteConcept(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	if err := h.service.DeleteConcept(r.Context(), domainID, conceptID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete concept")
		return
	}

	log.Debug("concept deleted",
		slog.String("domain_id", domainID.String()),
		slog.String("concept_id", conceptID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// GetLayout handles GET /domains/{domainID}/layout.
func (h *ConceptHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	mindMap, err := h.service.Layout(r.Context(), domainID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute layout")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, mindMap)
}

// Drag handles PUT /domains/{domainID}/layout/nodes/{conceptID}/drag.
func (h *ConceptHandler) Drag(w http.ResponseWriter, r *http.Request) {
	h.drag(w, r, h.service.Drag)
}

// DragEnd handles PUT /domains/{domainID}/layout/nodes/{conceptID}/drag-end.
// The position is saved after the debounce period; the response does not wait for it.
func (h *ConceptHandler) DragEnd(w http.ResponseWriter, r *http.Request) {
	h.drag(w, r, h.service.DragEnd)
}

func (h *ConceptHandler) drag(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, conceptID, ok := handleDomainAndConceptID(w, r, log)
	if !ok {
		return
	}

	var req PositionRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	if err := fn(r.Context(), domainID, conceptID, req.Position()); err != nil {
		HandleAPIError(w, r, err, "Failed to move node")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SaveLayout handles PUT /domains/{domainID}/layout.
// Per-node failures are reported in the body; the request itself succeeds.
func (h *ConceptHandler) SaveLayout(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	var req SaveLayoutRequest
	if !decodeAndValidate(w, r, log, &req, false) {
		return
	}

	positions := make(map[uuid.UUID]domain.Position, len(req.Positions))
	for _, p := range req.Positions {
		positions[p.ID] = domain.Position{X: *p.X, Y: *p.Y}
	}

	results, err := h.service.SavePositions(r.Context(), domainID, positions)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to save layout")
		return
	}

	resp := BulkResponse{Results: make([]ItemResult, 0, len(results))}
	for _, res := range results {
		item := ItemResult{ID: res.ID}
		if res.Err != nil {
			item.Error = GetSafeErrorMessage(res.Err)
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ResetLayout handles POST /domains/{domainID}/layout/reset.
// The body is optional; without ids every node is reset.
func (h *ConceptHandler) ResetLayout(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	var req ResetLayoutRequest
	if !decodeAndValidate(w, r, log, &req, true) {
		return
	}

	if err := h.service.ResetLayout(r.Context(), domainID, req.IDs); err != nil {
		HandleAPIError(w, r, err, "Failed to reset layout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /domains/{domainID}/refresh.
func (h *ConceptHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	if err := h.service.Refresh(r.Context(), domainID); err != nil {
		HandleAPIError(w, r, err, "Failed to refresh concepts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
