package service

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/unitofwork"
)

const entityCategory = "category"

// CategoryInput carries a new category.
type CategoryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (in CategoryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 100)),
	)
}

// CategoryPatch changes the non-nil fields of a category.
type CategoryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p CategoryPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.RuneLength(1, 100)),
	)
}

// CategoryCount is a category with the number of posts filed under it.
type CategoryCount struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	PostsCount  int     `json:"posts_count"`
}

// CategoryService manages categories. Category names are unique.
type CategoryService struct {
	factory *unitofwork.Factory
}

// Create stores a category. A taken name fails with ErrConflict.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate(in); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Category, error) {
		return createCategory(ctx, uow, in)
	})
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Category, error) {
		return byID(ctx, uow.Categories, entityCategory, id)
	})
}

// GetByName fails with ErrNotFound when no category carries name.
func (s *CategoryService) GetByName(ctx context.Context, name string) (*model.Category, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Category, error) {
		c, err := uow.Categories.FindOne(ctx, repository.Predicate{"name": name})
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, notFoundName(entityCategory, name)
		}
		return c, nil
	})
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Category, error) {
		return uow.Categories.FindAll(ctx)
	})
}

// Update applies patch. Renaming onto a taken name fails with ErrConflict.
func (s *CategoryService) Update(ctx context.Context, id int64, patch CategoryPatch) (*model.Category, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := validate(patch); err != nil {
		return nil, err
	}

	fields := repository.Fields{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}

	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Category, error) {
		if patch.Name != nil {
			existing, err := uow.Categories.FindOne(ctx, repository.Predicate{"name": *patch.Name})
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != id {
				return nil, fmt.Errorf("%w: category %q already exists", repository.ErrConflict, *patch.Name)
			}
		}
		updated, err := uow.Categories.Update(ctx, repository.Predicate{"id": id}, fields)
		if err != nil {
			return nil, err
		}
		return single(updated, entityCategory, id)
	})
}

// Delete unlinks a category from every post and removes it.
func (s *CategoryService) Delete(ctx context.Context, id int64) (*model.Category, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Category, error) {
		if _, err := byID(ctx, uow.Categories, entityCategory, id); err != nil {
			return nil, err
		}
		if _, err := uow.PostCategories.Delete(ctx, repository.Predicate{"category_id": id}); err != nil {
			return nil, err
		}
		deleted, err := uow.Categories.Delete(ctx, repository.Predicate{"id": id})
		if err != nil {
			return nil, err
		}
		return single(deleted, entityCategory, id)
	})
}

// PostsByCategory returns the posts filed under a category.
func (s *CategoryService) PostsByCategory(ctx context.Context, id int64) ([]model.Post, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Post, error) {
		if _, err := byID(ctx, uow.Categories, entityCategory, id); err != nil {
			return nil, err
		}
		edges, err := uow.PostCategories.FindSome(ctx, repository.Predicate{"category_id": id})
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(edges))
		for i, e := range edges {
			ids[i] = e.PostID
		}
		return postsByID(ctx, uow, ids)
	})
}

// WithPostCount lists every category with its post count, in id order.
func (s *CategoryService) WithPostCount(ctx context.Context) ([]CategoryCount, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]CategoryCount, error) {
		categories, err := uow.Categories.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]CategoryCount, 0, len(categories))
		for _, c := range categories {
			edges, err := uow.PostCategories.FindSome(ctx, repository.Predicate{"category_id": c.ID})
			if err != nil {
				return nil, err
			}
			out = append(out, CategoryCount{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				PostsCount:  len(edges),
			})
		}
		return out, nil
	})
}

func createCategory(ctx context.Context, uow *unitofwork.UnitOfWork, in CategoryInput) (*model.Category, error) {
	existing, err := uow.Categories.FindOne(ctx, repository.Predicate{"name": in.Name})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: category %q already exists", repository.ErrConflict, in.Name)
	}

	fields := repository.Fields{"name": in.Name}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	id, err := uow.Categories.AddOne(ctx, fields)
	if err != nil {
		return nil, err
	}
	return byID(ctx, uow.Categories, entityCategory, id)
}
