package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/domain"
)

// MilestoneService is the milestone backend of MilestoneHandler
type MilestoneService interface {
	List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Milestone, error)
	Create(ctx context.Context, userID, projectID uuid.UUID, input domain.MilestoneCreate) (*domain.Milestone, error)
	Update(ctx context.Context, userID, projectID, milestoneID uuid.UUID, input domain.MilestoneUpdate) (*domain.Milestone, error)
	Delete(ctx context.Context, userID, projectID, milestoneID uuid.UUID) error
}

// MilestoneHandler handles milestone endpoints
type MilestoneHandler struct {
	milestoneService MilestoneService
}

// NewMilestoneHandler creates a new milestone handler
func NewMilestoneHandler(milestoneService MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestoneService}
}

func (h *MilestoneHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	milestones, err := h.milestoneService.List(r.Context(), userID, projectID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, milestones)
}

func (h *MilestoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	var input domain.MilestoneCreate
	if !decode(w, r, &input) {
		return
	}

	milestone, err := h.milestoneService.Create(r.Context(), userID, projectID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, milestone)
}

func (h *MilestoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	milestoneID, ok := urlUUID(w, r, "milestoneID")
	if !ok {
		return
	}

	var input domain.MilestoneUpdate
	if !decode(w, r, &input) {
		return
	}

	milestone, err := h.milestoneService.Update(r.Context(), userID, projectID, milestoneID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, milestone)
}

func (h *MilestoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	milestoneID, ok := urlUUID(w, r, "milestoneID")
	if !ok {
		return
	}

	if err := h.milestoneService.Delete(r.Context(), userID, projectID, milestoneID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.NoContent(w)
}
