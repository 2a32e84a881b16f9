package bootstrap

import (
	"context"
	"errors"

	"anoa.com/unimarket/internal/entity"
	categoryRepo "anoa.com/unimarket/internal/modules/category/repository"
	studentRepo "anoa.com/unimarket/internal/modules/student/repository"
	"anoa.com/unimarket/pkg/logger"
	"gorm.io/gorm"
)

// DefaultCategories is the fixed category set every deployment starts with.
var DefaultCategories = []entity.Category{
	{Slug: "libros_texto", Name: "Libros de Texto", Icon: "📚"},
	{Slug: "apuntes_guias", Name: "Apuntes y Guías", Icon: "📝"},
	{Slug: "electronica", Name: "Electrónica", Icon: "💻"},
	{Slug: "instrumentos_laboratorio", Name: "Instrumentos Lab", Icon: "🔬"},
	{Slug: "ropa", Name: "Ropa", Icon: "👕"},
	{Slug: "deportes", Name: "Deportes", Icon: "⚽"},
	{Slug: "comida", Name: "Comida", Icon: "🍕"},
	{Slug: "accesorios", Name: "Accesorios", Icon: "🎒"},
	{Slug: "muebles_hogar", Name: "Muebles Hogar", Icon: "🛋️"},
	{Slug: "arte_musica", Name: "Arte y Música", Icon: "🎨"},
	{Slug: "servicios", Name: "Servicios", Icon: "🛠️"},
	{Slug: "otros", Name: "Otros", Icon: "📦"},
}

// SeedCategories is idempotent; existing slugs are left untouched.
func SeedCategories(ctx context.Context, repo categoryRepo.CategoryRepository) error {
	for _, c := range DefaultCategories {
		category := c
		category.Active = true
		if err := repo.EnsureExists(ctx, &category); err != nil {
			return err
		}
	}
	logger.FromContext(ctx).WithField("count", len(DefaultCategories)).Info("categories seeded")
	return nil
}

var demoStudents = []entity.Student{
	{IdentityRef: "dev|ana", FirstName: "Ana", LastName: "Torres", Handle: "ana.torres", Email: "ana@epn.edu.ec", Institution: entity.InstitutionEPN, Major: "Ingeniería de Software"},
	{IdentityRef: "dev|luis", FirstName: "Luis", LastName: "Mena", Handle: "luis.mena", Email: "luis@usfq.edu.ec", Institution: entity.InstitutionUSFQ, Major: "Economía"},
	{IdentityRef: "dev|sofia", FirstName: "Sofía", LastName: "Vega", Handle: "sofia.vega", Email: "sofia@puce.edu.ec", Institution: entity.InstitutionPUCE, Major: "Medicina"},
}

// SeedDemoStudents creates a few profiles for local development. Use `unimarket token dev|ana`
// to act as one of them.
func SeedDemoStudents(ctx context.Context, repo studentRepo.StudentRepository) error {
	log := logger.FromContext(ctx)
	for _, s := range demoStudents {
		student := s
		if err := repo.Create(ctx, &student); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				log.WithField("handle", student.Handle).Debug("demo student already exists, skipping")
				continue
			}
			return err
		}
		log.WithField("handle", student.Handle).Info("demo student created")
	}
	return nil
}
