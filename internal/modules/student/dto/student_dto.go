package dto

import (
	"time"

	"anoa.com/unimarket/internal/entity"
	commonDto "anoa.com/unimarket/pkg/dto"
	"github.com/google/uuid"
)

type RegisterStudentRequest struct {
	FirstName   string  `json:"first_name" binding:"required,max=100"`
	LastName    string  `json:"last_name" binding:"required,max=100"`
	Handle      string  `json:"handle" binding:"required,handle"`
	Email       string  `json:"email" binding:"required,email,max=254"`
	Institution string  `json:"institution" binding:"required,oneof=EPN USFQ PUCE UCE UDLA UTE UISRAEL UIDE UNIVERSIDAD_DEL_QUINDIO UNIVERSIDAD_INTERNACIONAL_SEK OTRA"`
	Major       string  `json:"major" binding:"max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
}

// UpdateStudentRequest is bound from multipart forms so an avatar can ride along.
type UpdateStudentRequest struct {
	FirstName   *string `json:"first_name" form:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" form:"last_name" binding:"omitempty,min=1,max=100"`
	Handle      *string `json:"handle" form:"handle" binding:"omitempty,handle"`
	Institution *string `json:"institution" form:"institution" binding:"omitempty,oneof=EPN USFQ PUCE UCE UDLA UTE UISRAEL UIDE UNIVERSIDAD_DEL_QUINDIO UNIVERSIDAD_INTERNACIONAL_SEK OTRA"`
	Major       *string `json:"major" form:"major" binding:"omitempty,max=100"`
	Phone       *string `json:"phone" form:"phone" binding:"omitempty,max=20"`
}

type StudentFilter struct {
	Search      string `form:"search"`
	Institution string `form:"institution"`
	commonDto.PageQuery
}

// StudentResponse is the public view of a student.
type StudentResponse struct {
	ID              uuid.UUID `json:"id"`
	Handle          string    `json:"handle"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	FullName        string    `json:"full_name"`
	Institution     string    `json:"institution"`
	Major           string    `json:"major"`
	AvatarURL       *string   `json:"avatar_url"`
	ReputationScore int       `json:"reputation_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ProfileResponse is returned for a single student together with their reputation.
// Email and Phone are only filled for the owner.
type ProfileResponse struct {
	StudentResponse
	Email      string                       `json:"email,omitempty"`
	Phone      *string                      `json:"phone,omitempty"`
	Reputation *commonDto.ReputationSummary `json:"reputation"`
}

type PaginatedStudentResponse struct {
	Data []StudentResponse        `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

func NewStudentResponse(s *entity.Student) StudentResponse {
	return StudentResponse{
		ID:              s.ID,
		Handle:          s.Handle,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		FullName:        s.FullName(),
		Institution:     s.Institution,
		Major:           s.Major,
		AvatarURL:       s.AvatarURL,
		ReputationScore: s.ReputationScore,
		CreatedAt:       s.CreatedAt,
	}
}

func NewProfileResponse(s *entity.Student, reputation *commonDto.ReputationSummary, isOwner bool) ProfileResponse {
	res := ProfileResponse{
		StudentResponse: NewStudentResponse(s),
		Reputation:      reputation,
	}
	if reputation != nil {
		// the summary self-heals the stored score, keep both fields in step
		res.ReputationScore = reputation.Score
	}
	if isOwner {
		res.Email = s.Email
		res.Phone = s.Phone
	}
	return res
}
