package repository

import (
	"context"

	"anoa.com/unimarket/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// profileColumns are the fields a student may change on their own profile.
// reputation_score is written only by the reputation module.
var profileColumns = []string{"first_name", "last_name", "handle", "institution", "major", "phone", "avatar_url"}

type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error)
	FindByIdentityRef(ctx context.Context, identityRef string) (*entity.Student, error)
	FindByHandle(ctx context.Context, handle string) (*entity.Student, error)
	FindByEmail(ctx context.Context, email string) (*entity.Student, error)
	FindAll(ctx context.Context, search, institution string, offset, limit int) ([]*entity.Student, int64, error)
	UpdateProfile(ctx context.Context, student *entity.Student) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Create(ctx context.Context, student *entity.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) FindByIdentityRef(ctx context.Context, identityRef string) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).Where("identity_ref = ?", identityRef).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) FindByHandle(ctx context.Context, handle string) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) FindByEmail(ctx context.Context, email string) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepository) FindAll(ctx context.Context, search, institution string, offset, limit int) ([]*entity.Student, int64, error) {
	var students []*entity.Student
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Student{})

	if search != "" {
		like := "%" + search + "%"
		query = query.Where("handle ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR major ILIKE ?", like, like, like, like)
	}

	if institution != "" {
		query = query.Where("institution = ?", institution)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("reputation_score DESC").Order("created_at ASC").Offset(offset).Limit(limit).Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) UpdateProfile(ctx context.Context, student *entity.Student) error {
	return r.db.WithContext(ctx).Model(student).Select(profileColumns).Updates(student).Error
}

func (r *studentRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&entity.Student{}).Order("created_at ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *studentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Student{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
