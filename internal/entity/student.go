package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InstitutionEPN     = "EPN"
	InstitutionUSFQ    = "USFQ"
	InstitutionPUCE    = "PUCE"
	InstitutionUCE     = "UCE"
	InstitutionUDLA    = "UDLA"
	InstitutionUTE     = "UTE"
	InstitutionUISRAEL = "UISRAEL"
	InstitutionUIDE    = "UIDE"
	InstitutionQuindio = "UNIVERSIDAD_DEL_QUINDIO"
	InstitutionSEK     = "UNIVERSIDAD_INTERNACIONAL_SEK"
	InstitutionOther   = "OTRA"
)

const (
	MinReputationScore = 0
	MaxReputationScore = 100
)

// Institutions lists the accepted institution tags in display order.
var Institutions = []string{
	InstitutionEPN, InstitutionUSFQ, InstitutionPUCE, InstitutionUCE, InstitutionUDLA,
	InstitutionUTE, InstitutionUISRAEL, InstitutionUIDE, InstitutionQuindio, InstitutionSEK,
	InstitutionOther,
}

// Student is a marketplace member. ReputationScore is derived from received ratings
// and is written only by the reputation module.
type Student struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IdentityRef     string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	FirstName       string    `gorm:"size:100;not null" json:"first_name"`
	LastName        string    `gorm:"size:100;not null" json:"last_name"`
	Handle          string    `gorm:"size:30;uniqueIndex;not null" json:"handle"`
	Email           string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Institution     string    `gorm:"size:40;not null;index" json:"institution"`
	Major           string    `gorm:"size:100" json:"major"`
	Phone           *string   `gorm:"size:20" json:"phone,omitempty"`
	AvatarURL       *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	ReputationScore int       `gorm:"not null;default:0;check:chk_students_reputation_range,reputation_score BETWEEN 0 AND 100" json:"reputation_score"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func IsValidInstitution(tag string) bool {
	for _, inst := range Institutions {
		if inst == tag {
			return true
		}
	}
	return false
}
