package student

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/student/dto"
	"anoa.com/unimarket/internal/modules/student/repository"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/sanitizer"
	"anoa.com/unimarket/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory resolves callers and students. Other modules depend on this narrow view.
type Directory interface {
	ResolveActor(ctx context.Context, identity string) (*entity.Student, error)
	GetByHandle(ctx context.Context, handle string) (*entity.Student, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Student, error)
}

type Service interface {
	Directory
	Register(ctx context.Context, identity string, req dto.RegisterStudentRequest) (*entity.Student, error)
	GetMe(ctx context.Context, identity string) (*entity.Student, error)
	List(ctx context.Context, filter dto.StudentFilter) (*dto.PaginatedStudentResponse, error)
	UpdateProfile(ctx context.Context, identity string, req dto.UpdateStudentRequest, avatar *commonDto.ImageFile) (*entity.Student, error)
}

type service struct {
	repo         repository.StudentRepository
	imageStorage storage.ImageStorage
}

func NewService(repo repository.StudentRepository, imageStorage storage.ImageStorage) Service {
	return &service{
		repo:         repo,
		imageStorage: imageStorage,
	}
}

func (s *service) ResolveActor(ctx context.Context, identity string) (*entity.Student, error) {
	if identity == "" {
		return nil, apperror.ErrUnauthorized
	}

	student, err := s.repo.FindByIdentityRef(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no student profile for this account: %w", apperror.ErrUnauthorized)
		}
		return nil, err
	}
	return student, nil
}

func (s *service) GetByHandle(ctx context.Context, handle string) (*entity.Student, error) {
	student, err := s.repo.FindByHandle(ctx, strings.ToLower(handle))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student %q: %w", handle, apperror.ErrNotFound)
		}
		return nil, err
	}
	return student, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*entity.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("student: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return student, nil
}

func (s *service) Register(ctx context.Context, identity string, req dto.RegisterStudentRequest) (*entity.Student, error) {
	if identity == "" {
		return nil, apperror.ErrUnauthorized
	}

	if _, err := s.repo.FindByIdentityRef(ctx, identity); err == nil {
		return nil, fmt.Errorf("this account already has a student profile: %w", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	handle := strings.ToLower(req.Handle)
	if err := s.ensureHandleFree(ctx, handle, uuid.Nil); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", apperror.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	student := &entity.Student{
		IdentityRef: identity,
		FirstName:   sanitizer.PlainText(req.FirstName),
		LastName:    sanitizer.PlainText(req.LastName),
		Handle:      handle,
		Email:       email,
		Institution: req.Institution,
		Major:       sanitizer.PlainText(req.Major),
		Phone:       req.Phone,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("handle or email already taken: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	logger.FromContext(ctx).WithField("handle", student.Handle).Info("student registered")
	return student, nil
}

func (s *service) GetMe(ctx context.Context, identity string) (*entity.Student, error) {
	return s.ResolveActor(ctx, identity)
}

func (s *service) List(ctx context.Context, filter dto.StudentFilter) (*dto.PaginatedStudentResponse, error) {
	filter.Normalize()
	if filter.Institution != "" && !entity.IsValidInstitution(filter.Institution) {
		return nil, fmt.Errorf("unknown institution %q: %w", filter.Institution, apperror.ErrInvalidInput)
	}

	offset := (filter.Page - 1) * filter.Limit
	students, total, err := s.repo.FindAll(ctx, filter.Search, filter.Institution, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	data := make([]dto.StudentResponse, 0, len(students))
	for _, st := range students {
		data = append(data, dto.NewStudentResponse(st))
	}

	return &dto.PaginatedStudentResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(filter.Page, filter.Limit, total),
	}, nil
}

func (s *service) UpdateProfile(ctx context.Context, identity string, req dto.UpdateStudentRequest, avatar *commonDto.ImageFile) (*entity.Student, error) {
	student, err := s.ResolveActor(ctx, identity)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		student.FirstName = sanitizer.PlainText(*req.FirstName)
	}
	if req.LastName != nil {
		student.LastName = sanitizer.PlainText(*req.LastName)
	}
	if req.Handle != nil {
		handle := strings.ToLower(*req.Handle)
		if handle != student.Handle {
			if err := s.ensureHandleFree(ctx, handle, student.ID); err != nil {
				return nil, err
			}
			student.Handle = handle
		}
	}
	if req.Institution != nil {
		student.Institution = *req.Institution
	}
	if req.Major != nil {
		student.Major = sanitizer.PlainText(*req.Major)
	}
	if req.Phone != nil {
		student.Phone = req.Phone
	}

	var oldAvatar, newAvatar *string
	if avatar != nil && avatar.Reader != nil {
		if s.imageStorage == nil {
			return nil, fmt.Errorf("image uploads are not configured: %w", apperror.ErrBadRequest)
		}
		url, err := s.imageStorage.UploadImage(ctx, avatar.Reader, "avatars", avatar.FileName)
		if err != nil {
			return nil, err
		}
		oldAvatar, newAvatar = student.AvatarURL, &url
		student.AvatarURL = newAvatar
	}

	if err := s.repo.UpdateProfile(ctx, student); err != nil {
		if newAvatar != nil {
			if delErr := s.imageStorage.DeleteImage(ctx, *newAvatar); delErr != nil {
				logger.FromContext(ctx).WithError(delErr).Warn("failed to delete orphaned avatar")
			}
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("handle already taken: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	if oldAvatar != nil && *oldAvatar != "" {
		if err := s.imageStorage.DeleteImage(ctx, *oldAvatar); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("failed to delete previous avatar")
		}
	}

	return student, nil
}

func (s *service) ensureHandleFree(ctx context.Context, handle string, self uuid.UUID) error {
	existing, err := s.repo.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != self {
		return fmt.Errorf("handle %q is already taken: %w", handle, apperror.ErrConflict)
	}
	return nil
}
