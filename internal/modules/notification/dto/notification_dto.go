package dto

import (
	"time"

	"anoa.com/unimarket/internal/entity"
	commonDto "anoa.com/unimarket/pkg/dto"
	"github.com/google/uuid"
)

type ActorResponse struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
}

type NotificationResponse struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	EntityID   uuid.UUID      `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	IsRead     bool           `json:"is_read"`
	Actor      *ActorResponse `json:"actor"`
	CreatedAt  time.Time      `json:"created_at"`
}

type PaginatedNotificationResponse struct {
	Data []NotificationResponse   `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}

func NewNotificationResponse(n *entity.Notification) NotificationResponse {
	res := NotificationResponse{
		ID:         n.ID,
		Type:       n.Type,
		Message:    n.Message,
		EntityID:   n.EntityID,
		EntityType: n.EntityType,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
	if n.Actor != nil {
		res.Actor = &ActorResponse{
			ID:        n.Actor.ID,
			Handle:    n.Actor.Handle,
			FullName:  n.Actor.FullName(),
			AvatarURL: n.Actor.AvatarURL,
		}
	}
	return res
}
