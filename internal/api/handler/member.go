package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/domain"
)

// MemberService is the membership backend of MemberHandler
type MemberService interface {
	List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Member, error)
	Add(ctx context.Context, requesterID, projectID uuid.UUID, input domain.MemberAdd) (*domain.Member, error)
	Remove(ctx context.Context, requesterID, projectID, userID uuid.UUID) error
}

// MemberHandler handles project membership endpoints
type MemberHandler struct {
	memberService MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	members, err := h.memberService.List(r.Context(), userID, projectID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, members)
}

func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	var input domain.MemberAdd
	if !decode(w, r, &input) {
		return
	}

	member, err := h.memberService.Add(r.Context(), userID, projectID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, member)
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	targetID, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.memberService.Remove(r.Context(), userID, projectID, targetID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.NoContent(w)
}
