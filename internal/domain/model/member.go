package model

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Member is one person in the family tree. Relationships are stored as
// member ids and resolved on read.
type Member struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	BirthDate   string    `json:"birthDate"`
	DeathDate   *string   `json:"deathDate,omitempty"`
	Gender      Gender    `json:"gender,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	Photo       *string   `json:"photo,omitempty"`
	ParentIDs   []string  `json:"parentIds"`
	SpouseID    *string   `json:"spouseId,omitempty"`
	ChildrenIDs []string  `json:"childrenIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MemberDetail is a member with its direct relatives resolved.
type MemberDetail struct {
	Member   Member   `json:"member"`
	Parents  []Member `json:"parents"`
	Spouse   *Member  `json:"spouse,omitempty"`
	Children []Member `json:"children"`
}

// TreeNode is a member with its descendants nested below it.
type TreeNode struct {
	Member   Member     `json:"member"`
	Spouse   *Member    `json:"spouse,omitempty"`
	Children []TreeNode `json:"children"`
}
