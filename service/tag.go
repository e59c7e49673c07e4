package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/unitofwork"
)

const entityTag = "tag"

// TagCount is a tag with the number of posts carrying it.
type TagCount struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PostsCount int    `json:"posts_count"`
}

// TagService manages tags. Tag names are unique.
type TagService struct {
	factory *unitofwork.Factory
}

func validateName(name string, maxLen int) error {
	return invalid(validation.Errors{
		"name": validation.Validate(name, validation.Required, validation.RuneLength(1, maxLen)),
	}.Filter())
}

// Create stores a tag. A taken name fails with ErrConflict.
func (s *TagService) Create(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name, 50); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Tag, error) {
		return createTag(ctx, uow, name)
	})
}

func (s *TagService) Get(ctx context.Context, id int64) (*model.Tag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Tag, error) {
		return byID(ctx, uow.Tags, entityTag, id)
	})
}

// GetByName fails with ErrNotFound when no tag carries name.
func (s *TagService) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Tag, error) {
		tag, err := uow.Tags.FindOne(ctx, repository.Predicate{"name": name})
		if err != nil {
			return nil, err
		}
		if tag == nil {
			return nil, notFoundName(entityTag, name)
		}
		return tag, nil
	})
}

func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Tag, error) {
		return uow.Tags.FindAll(ctx)
	})
}

// Update renames a tag.
func (s *TagService) Update(ctx context.Context, id int64, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name, 50); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Tag, error) {
		existing, err := uow.Tags.FindOne(ctx, repository.Predicate{"name": name})
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, fmt.Errorf("%w: tag %q already exists", repository.ErrConflict, name)
		}
		updated, err := uow.Tags.Update(ctx, repository.Predicate{"id": id}, repository.Fields{"name": name})
		if err != nil {
			return nil, err
		}
		return single(updated, entityTag, id)
	})
}

// Delete unlinks a tag from every post and removes it.
func (s *TagService) Delete(ctx context.Context, id int64) (*model.Tag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Tag, error) {
		if _, err := byID(ctx, uow.Tags, entityTag, id); err != nil {
			return nil, err
		}
		if _, err := uow.PostTags.Delete(ctx, repository.Predicate{"tag_id": id}); err != nil {
			return nil, err
		}
		deleted, err := uow.Tags.Delete(ctx, repository.Predicate{"id": id})
		if err != nil {
			return nil, err
		}
		return single(deleted, entityTag, id)
	})
}

// PostsByTag returns the posts carrying a tag.
func (s *TagService) PostsByTag(ctx context.Context, id int64) ([]model.Post, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Post, error) {
		if _, err := byID(ctx, uow.Tags, entityTag, id); err != nil {
			return nil, err
		}
		edges, err := uow.PostTags.FindSome(ctx, repository.Predicate{"tag_id": id})
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

// Popular returns up to limit tags ordered by post count, most used first.
// Ties keep id order. A limit below one returns every tag.
func (s *TagService) Popular(ctx context.Context, limit int) ([]TagCount, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]TagCount, error) {
		tags, err := uow.Tags.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		counts := make([]TagCount, 0, len(tags))
		for _, t := range tags {
			edges, err := uow.PostTags.FindSome(ctx, repository.Predicate{"tag_id": t.ID})
			if err != nil {
				return nil, err
			}
			counts = append(counts, TagCount{ID: t.ID, Name: t.Name, PostsCount: len(edges)})
		}
		slices.SortStableFunc(counts, func(a, b TagCount) int {
			return b.PostsCount - a.PostsCount
		})
		if limit > 0 && len(counts) > limit {
			counts = counts[:limit]
		}
		return counts, nil
	})
}

func createTag(ctx context.Context, uow *unitofwork.UnitOfWork, name string) (*model.Tag, error) {
	existing, err := uow.Tags.FindOne(ctx, repository.Predicate{"name": name})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: tag %q already exists", repository.ErrConflict, name)
	}
	id, err := uow.Tags.AddOne(ctx, repository.Fields{"name": name})
	if err != nil {
		return nil, err
	}
	return byID(ctx, uow.Tags, entityTag, id)
}

// postsByID loads posts in the order of ids, skipping ids that no longer
// resolve.
func postsByID(ctx context.Context, uow *unitofwork.UnitOfWork, ids []int64) ([]model.Post, error) {
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		p, err := uow.Posts.FindOne(ctx, repository.Predicate{"id": id})
		if err != nil {
			return nil, err
		}
		if p != nil {
			posts = append(posts, *p)
		}
	}
	return posts, nil
}
