package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

const slugConstraint = "categories_slug_key"

// Service exposes category reads and admin mutations.
type Service interface {
	List(ctx context.Context) ([]CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	GetBySlug(ctx context.Context, slug string) (*CategoryDTO, error)
	Create(ctx context.Context, req CreateCategoryRequest) (*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo *Repository
	tx   db.TxRunner
	logg *logger.Logger
}

// NewService constructs the category service.
func NewService(repo *Repository, tx db.TxRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookup(err, fmt.Sprintf("category %s not found", id))
	}
	return FromModel(category), nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*CategoryDTO, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	category, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateLookup(err, fmt.Sprintf("category with slug %s not found", slug))
	}
	return FromModel(category), nil
}

func (s *service) Create(ctx context.Context, req CreateCategoryRequest) (*CategoryDTO, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Name == "" || req.Slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and slug are required")
	}

	if _, err := s.repo.FindIDBySlug(ctx, req.Slug); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category slug")
	}

	category := req.toModel()
	if err := s.repo.Create(ctx, category); err != nil {
		if db.IsUniqueViolation(err, slugConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "category_id", category.ID.String()), "category created")
	}
	return FromModel(category), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateCategoryRequest) (*CategoryDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		category, err := repo.FindByID(ctx, id)
		if err != nil {
			return translateLookup(err, fmt.Sprintf("category %s not found", id))
		}

		if req.Slug != nil {
			slug := strings.TrimSpace(*req.Slug)
			if slug == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be empty")
			}
			owner, err := repo.FindIDBySlug(ctx, slug)
			switch {
			case err == nil && owner != id:
				return pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category slug")
			}
			category.Slug = slug
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			category.Name = name
		}
		if req.Description != nil {
			category.Description = req.Description
		}

		if err := repo.Update(ctx, category); err != nil {
			if db.IsUniqueViolation(err, slugConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category slug already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return translateLookup(err, fmt.Sprintf("category %s not found", id))
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "category_id", id.String()), "category deleted")
	}
	return nil
}

func translateLookup(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
}
