package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/unimarket/internal/entity"
	notifDto "anoa.com/unimarket/internal/modules/notification/dto"
	notifRepo "anoa.com/unimarket/internal/modules/notification/repository"
	student "anoa.com/unimarket/internal/modules/student/service"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel a student's live notifications are published on.
func Channel(studentID uuid.UUID) string {
	return fmt.Sprintf("student_notifications:%s", studentID.String())
}

type Service interface {
	Create(ctx context.Context, notification *entity.Notification) error
	List(ctx context.Context, identity string, page commonDto.PageQuery) (*notifDto.PaginatedNotificationResponse, error)
	UnreadCount(ctx context.Context, identity string) (int64, error)
	MarkAsRead(ctx context.Context, identity string, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, identity string) error
	ChannelFor(ctx context.Context, identity string) (string, error)
}

type service struct {
	repo        notifRepo.NotificationRepository
	students    student.Directory
	redisClient *redis.Client
}

func NewService(repo notifRepo.NotificationRepository, students student.Directory, redisClient *redis.Client) Service {
	return &service{
		repo:        repo,
		students:    students,
		redisClient: redisClient,
	}
}

func (s *service) Create(ctx context.Context, notification *entity.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.redisClient != nil {
		payload, err := json.Marshal(notifDto.NewNotificationResponse(notification))
		if err != nil {
			return nil
		}
		if err := s.redisClient.Publish(ctx, Channel(notification.StudentID), payload).Err(); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("student_id", notification.StudentID).Warn("failed to publish notification")
		}
	}

	return nil
}

func (s *service) List(ctx context.Context, identity string, page commonDto.PageQuery) (*notifDto.PaginatedNotificationResponse, error) {
	me, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	page.Normalize()
	notifications, total, err := s.repo.FindByStudent(ctx, me.ID, page.Limit, (page.Page-1)*page.Limit)
	if err != nil {
		return nil, err
	}

	data := make([]notifDto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, notifDto.NewNotificationResponse(&notifications[i]))
	}

	return &notifDto.PaginatedNotificationResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page.Page, page.Limit, total),
	}, nil
}

func (s *service) UnreadCount(ctx context.Context, identity string) (int64, error) {
	me, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, me.ID)
}

func (s *service) MarkAsRead(ctx context.Context, identity string, id uuid.UUID) error {
	me, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return err
	}

	affected, err := s.repo.MarkAsRead(ctx, id, me.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("notification: %w", apperror.ErrNotFound)
	}
	return nil
}

func (s *service) MarkAllAsRead(ctx context.Context, identity string) error {
	me, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return err
	}
	return s.repo.MarkAllAsRead(ctx, me.ID)
}

func (s *service) ChannelFor(ctx context.Context, identity string) (string, error) {
	me, err := s.students.ResolveActor(ctx, identity)
	if err != nil {
		return "", err
	}
	return Channel(me.ID), nil
}
