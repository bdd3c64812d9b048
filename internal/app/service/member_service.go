package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"family_tree/internal/common"
	"family_tree/internal/domain/model"
	"family_tree/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrMemberNotFound = common.NewClientError(common.ErrNotFound, "Member not found")

type MemberService struct {
	memberRepo repository.MemberRepository
	log        *slog.Logger
	now        func() time.Time

	// mu spans a whole write: the member itself plus the relatives whose
	// links it rewrites. Reads do not take it.
	mu sync.Mutex
}

func NewMemberService(memberRepo repository.MemberRepository, log *slog.Logger) *MemberService {
	return &MemberService{memberRepo: memberRepo, log: log, now: time.Now}
}

type CreateMemberRequest struct {
	Name        string       `json:"name"`
	BirthDate   string       `json:"birthDate"`
	DeathDate   *string      `json:"deathDate,omitempty"`
	Gender      model.Gender `json:"gender,omitempty"`
	Bio         *string      `json:"bio,omitempty"`
	Photo       *string      `json:"photo,omitempty"`
	ParentIDs   []string     `json:"parentIds,omitempty"`
	SpouseID    *string      `json:"spouseId,omitempty"`
	ChildrenIDs []string     `json:"childrenIds,omitempty"`
}

// UpdateMemberRequest changes only the fields that are present.
type UpdateMemberRequest struct {
	Name        *string       `json:"name,omitempty"`
	BirthDate   *string       `json:"birthDate,omitempty"`
	DeathDate   *string       `json:"deathDate,omitempty"`
	Gender      *model.Gender `json:"gender,omitempty"`
	Bio         *string       `json:"bio,omitempty"`
	Photo       *string       `json:"photo,omitempty"`
	ParentIDs   *[]string     `json:"parentIds,omitempty"`
	SpouseID    *string       `json:"spouseId,omitempty"`
	ChildrenIDs *[]string     `json:"childrenIds,omitempty"`
}

func (s *MemberService) ListMembers(ctx context.Context) ([]model.Member, error) {
	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *MemberService) CreateMember(ctx context.Context, req CreateMemberRequest) (*model.Member, error) {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.BirthDate) == "" {
		missing = append(missing, "birthDate")
	}
	if len(missing) > 0 {
		return nil, &common.ValidationError{Fields: missing}
	}
	if err := validateGender(req.Gender); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load members: %w", err)
	}
	byID := indexMembers(members)

	now := s.now().UTC()
	member := &model.Member{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		BirthDate:   req.BirthDate,
		DeathDate:   req.DeathDate,
		Gender:      req.Gender,
		Bio:         req.Bio,
		Photo:       req.Photo,
		ParentIDs:   dedupe(req.ParentIDs),
		SpouseID:    emptyToNil(req.SpouseID),
		ChildrenIDs: dedupe(req.ChildrenIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	member.Slug = uniqueSlug(member.Name, member.ID, members)

	if err := checkRelations(member, byID); err != nil {
		return nil, err
	}
	if err := s.memberRepo.Create(ctx, member); err != nil {
		return nil, common.Errorf("failed to create member: %w", err)
	}
	if err := s.syncRelatives(ctx, byID, nil, member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *MemberService) UpdateMember(ctx context.Context, id string, req UpdateMemberRequest) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, common.Errorf("failed to find member: %w", err)
	}
	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load members: %w", err)
	}
	byID := indexMembers(members)
	before := cloneMember(*existing)
	updated := cloneMember(*existing)

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, &common.ValidationError{Fields: []string{"name"}}
		}
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name != before.Name {
			updated.Slug = uniqueSlug(updated.Name, updated.ID, members)
		}
	}
	if req.BirthDate != nil {
		if strings.TrimSpace(*req.BirthDate) == "" {
			return nil, &common.ValidationError{Fields: []string{"birthDate"}}
		}
		updated.BirthDate = *req.BirthDate
	}
	if req.DeathDate != nil {
		updated.DeathDate = emptyToNil(req.DeathDate)
	}
	if req.Gender != nil {
		if err := validateGender(*req.Gender); err != nil {
			return nil, err
		}
		updated.Gender = *req.Gender
	}
	if req.Bio != nil {
		updated.Bio = emptyToNil(req.Bio)
	}
	if req.Photo != nil {
		updated.Photo = emptyToNil(req.Photo)
	}
	if req.ParentIDs != nil {
		updated.ParentIDs = dedupe(*req.ParentIDs)
	}
	if req.SpouseID != nil {
		updated.SpouseID = emptyToNil(req.SpouseID)
	}
	if req.ChildrenIDs != nil {
		updated.ChildrenIDs = dedupe(*req.ChildrenIDs)
	}

	if err := checkRelations(&updated, byID); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UTC()
	if err := s.memberRepo.Update(ctx, &updated); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, common.Errorf("failed to update member: %w", err)
	}
	if err := s.syncRelatives(ctx, byID, &before, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteMember removes the member and every reference other members hold to it.
func (s *MemberService) DeleteMember(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.memberRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrMemberNotFound
		}
		return common.Errorf("failed to find member: %w", err)
	}
	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return common.Errorf("failed to load members: %w", err)
	}
	byID := indexMembers(members)

	if err := s.memberRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrMemberNotFound
		}
		return common.Errorf("failed to delete member: %w", err)
	}
	delete(byID, id)

	// Sweep all members, not only the listed relatives, so one-sided links go too.
	for _, m := range byID {
		orig := cloneMember(*m)
		m.ParentIDs = without(m.ParentIDs, id)
		m.ChildrenIDs = without(m.ChildrenIDs, id)
		if m.SpouseID != nil && *m.SpouseID == id {
			m.SpouseID = nil
		}
		if err := s.saveIfChanged(ctx, orig, m); err != nil {
			return err
		}
	}
	s.log.InfoContext(ctx, "member deleted", "member_id", existing.ID, "name", existing.Name)
	return nil
}

// GetMemberDetails looks the member up by id, then by slug, and resolves its
// parents, spouse and children.
func (s *MemberService) GetMemberDetails(ctx context.Context, idOrSlug string) (*model.MemberDetail, error) {
	member, err := s.findMember(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load members: %w", err)
	}
	byID := indexMembers(members)

	detail := &model.MemberDetail{
		Member:   *member,
		Parents:  s.resolve(ctx, member.ID, member.ParentIDs, byID),
		Children: s.resolve(ctx, member.ID, member.ChildrenIDs, byID),
	}
	if member.SpouseID != nil {
		if spouse := s.resolve(ctx, member.ID, []string{*member.SpouseID}, byID); len(spouse) == 1 {
			detail.Spouse = &spouse[0]
		}
	}
	return detail, nil
}

// BuildTree nests every member under its parents, starting from members
// without known parents. Each member appears once; cycles are cut.
func (s *MemberService) BuildTree(ctx context.Context) ([]model.TreeNode, error) {
	members, err := s.memberRepo.List(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load members: %w", err)
	}
	byID := indexMembers(members)

	// children from both directions of the relation, in stored order
	children := make(map[string][]string, len(members))
	for _, m := range members {
		for _, c := range m.ChildrenIDs {
			if _, ok := byID[c]; ok {
				children[m.ID] = appendUnique(children[m.ID], c)
			}
		}
		for _, p := range m.ParentIDs {
			if _, ok := byID[p]; ok {
				children[p] = appendUnique(children[p], m.ID)
			}
		}
	}

	isRoot := func(m model.Member) bool {
		for _, p := range m.ParentIDs {
			if _, ok := byID[p]; ok {
				return false
			}
		}
		return true
	}

	visited := make(map[string]bool, len(members))
	var build func(id string) model.TreeNode
	build = func(id string) model.TreeNode {
		visited[id] = true
		m := byID[id]
		node := model.TreeNode{Member: *m, Children: []model.TreeNode{}}
		if m.SpouseID != nil {
			if sp, ok := byID[*m.SpouseID]; ok {
				spouse := *sp
				node.Spouse = &spouse
				// a spouse without parents of their own belongs to this node only
				if isRoot(*sp) {
					visited[sp.ID] = true
					for _, c := range children[sp.ID] {
						children[id] = appendUnique(children[id], c)
					}
				}
			}
		}
		for _, c := range children[id] {
			if !visited[c] {
				node.Children = append(node.Children, build(c))
			}
		}
		return node
	}

	roots := []model.TreeNode{}
	for _, m := range members {
		if isRoot(m) && !visited[m.ID] {
			roots = append(roots, build(m.ID))
		}
	}
	// members only reachable through a cycle
	for _, m := range members {
		if !visited[m.ID] {
			roots = append(roots, build(m.ID))
		}
	}
	return roots, nil
}

func (s *MemberService) findMember(ctx context.Context, idOrSlug string) (*model.Member, error) {
	m, err := s.memberRepo.FindByID(ctx, idOrSlug)
	if errors.Is(err, common.ErrNotFound) {
		m, err = s.memberRepo.FindBySlug(ctx, idOrSlug)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, common.Errorf("failed to find member: %w", err)
	}
	return m, nil
}

func (s *MemberService) resolve(ctx context.Context, ownerID string, ids []string, byID map[string]*model.Member) []model.Member {
	out := []model.Member{}
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			s.log.WarnContext(ctx, "dangling member reference", "member_id", ownerID, "ref_id", id)
			continue
		}
		out = append(out, *m)
	}
	return out
}

// syncRelatives mirrors the relations of cur (and drops those of before) on
// the related members, so parent/child and spouse links point both ways.
func (s *MemberService) syncRelatives(ctx context.Context, byID map[string]*model.Member, before, cur *model.Member) error {
	id := cur.ID
	touched := map[string]model.Member{}
	relative := func(rid string) *model.Member {
		m, ok := byID[rid]
		if !ok || rid == id {
			return nil
		}
		if _, seen := touched[rid]; !seen {
			touched[rid] = cloneMember(*m)
		}
		return m
	}

	if before != nil {
		for _, p := range before.ParentIDs {
			if m := relative(p); m != nil {
				m.ChildrenIDs = without(m.ChildrenIDs, id)
			}
		}
		for _, c := range before.ChildrenIDs {
			if m := relative(c); m != nil {
				m.ParentIDs = without(m.ParentIDs, id)
			}
		}
		if before.SpouseID != nil {
			if m := relative(*before.SpouseID); m != nil && m.SpouseID != nil && *m.SpouseID == id {
				m.SpouseID = nil
			}
		}
	}

	for _, p := range cur.ParentIDs {
		if m := relative(p); m != nil {
			m.ChildrenIDs = appendUnique(m.ChildrenIDs, id)
		}
	}
	for _, c := range cur.ChildrenIDs {
		if m := relative(c); m != nil {
			m.ParentIDs = appendUnique(m.ParentIDs, id)
		}
	}
	if cur.SpouseID != nil {
		if m := relative(*cur.SpouseID); m != nil {
			if m.SpouseID != nil && *m.SpouseID != id {
				if prev := relative(*m.SpouseID); prev != nil && prev.SpouseID != nil && *prev.SpouseID == m.ID {
					prev.SpouseID = nil
				}
			}
			spouse := id
			m.SpouseID = &spouse
		}
	}

	for rid, orig := range touched {
		if err := s.saveIfChanged(ctx, orig, byID[rid]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemberService) saveIfChanged(ctx context.Context, orig model.Member, m *model.Member) error {
	if sameRelations(orig, *m) {
		return nil
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.memberRepo.Update(ctx, m); err != nil {
		return common.Errorf("failed to update relative %s: %w", m.ID, err)
	}
	return nil
}

func checkRelations(m *model.Member, byID map[string]*model.Member) error {
	refs := append(append([]string{}, m.ParentIDs...), m.ChildrenIDs...)
	if m.SpouseID != nil {
		refs = append(refs, *m.SpouseID)
	}
	for _, ref := range refs {
		if ref == m.ID {
			return common.NewClientError(common.ErrValidation, "A member cannot be related to itself")
		}
		if _, ok := byID[ref]; !ok {
			return common.NewClientError(common.ErrValidation, "Unknown related member: "+ref)
		}
	}
	for _, p := range m.ParentIDs {
		if slices.Contains(m.ChildrenIDs, p) {
			return common.NewClientError(common.ErrValidation, "A member cannot be both parent and child: "+p)
		}
	}
	return nil
}

func validateGender(g model.Gender) error {
	switch g {
	case "", model.GenderMale, model.GenderFemale, model.GenderOther:
		return nil
	}
	return common.NewClientError(common.ErrValidation, "Invalid gender: "+string(g))
}

func uniqueSlug(name, id string, members []model.Member) string {
	base := slug.Make(name)
	if base == "" {
		base = "member"
	}
	for _, m := range members {
		if m.Slug == base && m.ID != id {
			return base + "-" + strings.SplitN(id, "-", 2)[0]
		}
	}
	return base
}

func indexMembers(members []model.Member) map[string]*model.Member {
	byID := make(map[string]*model.Member, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}
	return byID
}

func cloneMember(m model.Member) model.Member {
	m.ParentIDs = slices.Clone(m.ParentIDs)
	m.ChildrenIDs = slices.Clone(m.ChildrenIDs)
	if m.ParentIDs == nil {
		m.ParentIDs = []string{}
	}
	if m.ChildrenIDs == nil {
		m.ChildrenIDs = []string{}
	}
	if m.SpouseID != nil {
		sp := *m.SpouseID
		m.SpouseID = &sp
	}
	return m
}

func sameRelations(a, b model.Member) bool {
	if !slices.Equal(a.ParentIDs, b.ParentIDs) || !slices.Equal(a.ChildrenIDs, b.ChildrenIDs) {
		return false
	}
	switch {
	case a.SpouseID == nil && b.SpouseID == nil:
		return true
	case a.SpouseID == nil || b.SpouseID == nil:
		return false
	default:
		return *a.SpouseID == *b.SpouseID
	}
}

func dedupe(ids []string) []string {
	out := []string{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = appendUnique(out, id)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
