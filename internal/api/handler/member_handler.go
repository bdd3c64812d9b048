package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"family_tree/internal/api/middleware"
	"family_tree/internal/app/service"
	"family_tree/internal/common"
	"family_tree/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type MemberHandler struct {
	memberService *service.MemberService
	log           *slog.Logger
}

func NewMemberHandler(ms *service.MemberService, log *slog.Logger) *MemberHandler {
	return &MemberHandler{memberService: ms, log: log}
}

// RegisterMemberRoutes mounts the flat member collection under /api/members.
func (h *MemberHandler) RegisterMemberRoutes(r chi.Router) {
	r.Get("/", h.listMembers)   // GET /api/members
	r.Post("/", h.createMember) // POST /api/members
}

// RegisterFamilyRoutes mounts /api/family. Writes under it sit behind the
// session gate installed on the router.
func (h *MemberHandler) RegisterFamilyRoutes(r chi.Router) {
	r.Get("/", h.getFamily) // GET /api/family

	r.Route("/members", func(mr chi.Router) {
		mr.Get("/", h.listMembers)
		mr.Post("/", h.createMember)
		mr.Get("/{memberID}", h.getMember) // id or slug
		mr.Put("/{memberID}", h.updateMember)
		mr.With(middleware.AdminOnly).Delete("/{memberID}", h.deleteMember)
	})
}

type familyResponse struct {
	Members []model.Member   `json:"members"`
	Tree    []model.TreeNode `json:"tree"`
}

func (h *MemberHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberService.ListMembers(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) createMember(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	member, err := h.memberService.CreateMember(r.Context(), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) getFamily(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberService.ListMembers(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	tree, err := h.memberService.BuildTree(r.Context())
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, familyResponse{Members: members, Tree: tree})
}

func (h *MemberHandler) getMember(w http.ResponseWriter, r *http.Request) {
	detail, err := h.memberService.GetMemberDetails(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *MemberHandler) updateMember(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	member, err := h.memberService.UpdateMember(r.Context(), chi.URLParam(r, "memberID"), req)
	if err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) deleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.memberService.DeleteMember(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		common.RespondWithServiceError(w, r, h.log, err)
		return
	}
	common.RespondWithMessage(w, http.StatusOK, "Member deleted")
}
