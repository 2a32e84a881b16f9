package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]entity.Notification, int64, error)
	MarkAsRead(ctx context.Context, id, studentID uuid.UUID) (int64, error)
	MarkAllAsRead(ctx context.Context, studentID uuid.UUID) error
	CountUnread(ctx context.Context, studentID uuid.UUID) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) FindByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]entity.Notification, int64, error) {
	var notifications []entity.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Preload("Actor", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "handle", "first_name", "last_name", "avatar_url")
		}).
		Find(&notifications).Error
	return notifications, total, err
}

// MarkAsRead only touches the row when it belongs to studentID and returns the rows affected.
func (r *notificationRepository) MarkAsRead(ctx context.Context, id, studentID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND student_id = ?", id, studentID).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, studentID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entity.Notification{}).Where("student_id = ? AND is_read = ?", studentID, false).Update("is_read", true).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("student_id = ? AND is_read = ?", studentID, false).Count(&count).Error
	return count, err
}
