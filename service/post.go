package service

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/unitofwork"
)

const entityPost = "post"

// PostInput carries the fields of a new post. Empty Type and Status take
// the stored defaults (article, draft).
type PostInput struct {
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	Type            model.PostType   `json:"type,omitempty"`
	Status          model.PostStatus `json:"status,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	AuthorID        int64            `json:"author_id"`
}

func (in PostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(3, 255)),
		validation.Field(&in.Content, validation.Required, validation.RuneLength(10, 0)),
		validation.Field(&in.Type, validation.In(model.PostTypes...)),
		validation.Field(&in.Status, validation.In(model.PostStatuses...)),
		validation.Field(&in.AuthorID, validation.Required, validation.Min(int64(1))),
	)
}

func (in PostInput) fields() repository.Fields {
	f := repository.Fields{
		"title":     in.Title,
		"content":   in.Content,
		"author_id": in.AuthorID,
	}
	if in.Type != "" {
		f["type"] = string(in.Type)
	}
	if in.Status != "" {
		f["status"] = string(in.Status)
	}
	if in.PublicationDate != nil {
		f["publication_date"] = *in.PublicationDate
	}
	return f
}

// PostPatch changes the non-nil fields of a post.
type PostPatch struct {
	Title           *string           `json:"title,omitempty"`
	Content         *string           `json:"content,omitempty"`
	Type            *model.PostType   `json:"type,omitempty"`
	Status          *model.PostStatus `json:"status,omitempty"`
	PublicationDate *time.Time        `json:"publication_date,omitempty"`
}

func (p PostPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.RuneLength(3, 255)),
		validation.Field(&p.Content, validation.NilOrNotEmpty, validation.RuneLength(10, 0)),
		validation.Field(&p.Type, validation.NilOrNotEmpty, validation.In(model.PostTypes...)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In(model.PostStatuses...)),
	)
}

func (p PostPatch) fields() repository.Fields {
	f := repository.Fields{}
	if p.Title != nil {
		f["title"] = *p.Title
	}
	if p.Content != nil {
		f["content"] = *p.Content
	}
	if p.Type != nil {
		f["type"] = string(*p.Type)
	}
	if p.Status != nil {
		f["status"] = string(*p.Status)
	}
	if p.PublicationDate != nil {
		f["publication_date"] = *p.PublicationDate
	}
	return f
}

// PostFilter narrows List. Zero fields do not filter.
type PostFilter struct {
	Type     model.PostType
	Status   model.PostStatus
	AuthorID int64
}

func (f PostFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.In(model.PostTypes...)),
		validation.Field(&f.Status, validation.In(model.PostStatuses...)),
		validation.Field(&f.AuthorID, validation.Min(int64(0))),
	)
}

func (f PostFilter) predicate() repository.Predicate {
	where := repository.Predicate{}
	if f.Type != "" {
		where["type"] = string(f.Type)
	}
	if f.Status != "" {
		where["status"] = string(f.Status)
	}
	if f.AuthorID != 0 {
		where["author_id"] = f.AuthorID
	}
	return where
}

// PostDetail is a post with its comment count, tags and categories.
type PostDetail struct {
	model.Post
	CommentsCount int              `json:"comments_count"`
	Tags          []model.Tag      `json:"tags"`
	Categories    []model.Category `json:"categories"`
}

// PostService manages posts and their tag and category edges.
type PostService struct {
	factory *unitofwork.Factory
}

// Create stores a new post and returns it as persisted.
func (s *PostService) Create(ctx context.Context, in PostInput) (*model.Post, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Post, error) {
		return createPost(ctx, uow, in)
	})
}

func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Post, error) {
		return byID(ctx, uow.Posts, entityPost, id)
	})
}

// List returns the posts matching filter ordered by id.
func (s *PostService) List(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	if err := validate(filter); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Post, error) {
		return uow.Posts.FindSome(ctx, filter.predicate())
	})
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID int64) ([]model.Post, error) {
	if err := validID("author_id", authorID); err != nil {
		return nil, err
	}
	return s.List(ctx, PostFilter{AuthorID: authorID})
}

func (s *PostService) ListPublished(ctx context.Context) ([]model.Post, error) {
	return s.List(ctx, PostFilter{Status: model.PostStatusPublished})
}

// Update applies patch and returns the updated post.
func (s *PostService) Update(ctx context.Context, id int64, patch PostPatch) (*model.Post, error) {
	if err := validate(patch); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Post, error) {
		return updatePost(ctx, uow, id, patch.fields())
	})
}

// Delete removes a post together with its comments and edges and returns
// the removed post.
func (s *PostService) Delete(ctx context.Context, id int64) (*model.Post, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Post, error) {
		if _, err := byID(ctx, uow.Posts, entityPost, id); err != nil {
			return nil, err
		}
		// replies reference their parents; one statement removes the whole
		// thread before the constraint is checked
		if _, err := uow.Comments.Delete(ctx, repository.Predicate{"post_id": id}); err != nil {
			return nil, err
		}
		if _, err := uow.PostTags.Delete(ctx, repository.Predicate{"post_id": id}); err != nil {
			return nil, err
		}
		if _, err := uow.PostCategories.Delete(ctx, repository.Predicate{"post_id": id}); err != nil {
			return nil, err
		}
		deleted, err := uow.Posts.Delete(ctx, repository.Predicate{"id": id})
		if err != nil {
			return nil, err
		}
		return single(deleted, entityPost, id)
	})
}

// Publish moves a post to the published status.
func (s *PostService) Publish(ctx context.Context, id int64) (*model.Post, error) {
	return s.setStatus(ctx, id, model.PostStatusPublished)
}

// Archive moves a post to the archived status.
func (s *PostService) Archive(ctx context.Context, id int64) (*model.Post, error) {
	return s.setStatus(ctx, id, model.PostStatusArchived)
}

func (s *PostService) setStatus(ctx context.Context, id int64, status model.PostStatus) (*model.Post, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Post, error) {
		return updatePost(ctx, uow, id, repository.Fields{"status": string(status)})
	})
}

// AddTag links a tag to a post. Linking an existing pair returns the
// existing edge.
func (s *PostService) AddTag(ctx context.Context, postID, tagID int64) (*model.PostTag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.PostTag, error) {
		return addTag(ctx, uow, postID, tagID)
	})
}

// RemoveTag unlinks a tag from a post and returns the removed edges, which
// is empty when the pair was not linked.
func (s *PostService) RemoveTag(ctx context.Context, postID, tagID int64) ([]model.PostTag, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.PostTag, error) {
		if _, err := byID(ctx, uow.Posts, entityPost, postID); err != nil {
			return nil, err
		}
		return uow.PostTags.Delete(ctx, repository.Predicate{"post_id": postID, "tag_id": tagID})
	})
}

// AddCategory links a category to a post. Linking an existing pair returns
// the existing edge.
func (s *PostService) AddCategory(ctx context.Context, postID, categoryID int64) (*model.PostCategory, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.PostCategory, error) {
		return addCategory(ctx, uow, postID, categoryID)
	})
}

func (s *PostService) RemoveCategory(ctx context.Context, postID, categoryID int64) ([]model.PostCategory, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.PostCategory, error) {
		if _, err := byID(ctx, uow.Posts, entityPost, postID); err != nil {
			return nil, err
		}
		return uow.PostCategories.Delete(ctx, repository.Predicate{"post_id": postID, "category_id": categoryID})
	})
}

// Detail loads a post with its comment count, tags and categories.
func (s *PostService) Detail(ctx context.Context, id int64) (*PostDetail, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*PostDetail, error) {
		post, err := byID(ctx, uow.Posts, entityPost, id)
		if err != nil {
			return nil, err
		}
		comments, err := uow.Comments.FindSome(ctx, repository.Predicate{"post_id": id})
		if err != nil {
			return nil, err
		}

		detail := &PostDetail{
			Post:          *post,
			CommentsCount: len(comments),
			Tags:          []model.Tag{},
			Categories:    []model.Category{},
		}

		tagEdges, err := uow.PostTags.FindSome(ctx, repository.Predicate{"post_id": id})
		if err != nil {
			return nil, err
		}
		for _, edge := range tagEdges {
			tag, err := uow.Tags.FindOne(ctx, repository.Predicate{"id": edge.TagID})
			if err != nil {
				return nil, err
			}
			if tag != nil {
				detail.Tags = append(detail.Tags, *tag)
			}
		}

		categoryEdges, err := uow.PostCategories.FindSome(ctx, repository.Predicate{"post_id": id})
		if err != nil {
			return nil, err
		}
		for _, edge := range categoryEdges {
			category, err := uow.Categories.FindOne(ctx, repository.Predicate{"id": edge.CategoryID})
			if err != nil {
				return nil, err
			}
			if category != nil {
				detail.Categories = append(detail.Categories, *category)
			}
		}
		return detail, nil
	})
}

func createPost(ctx context.Context, uow *unitofwork.UnitOfWork, in PostInput) (*model.Post, error) {
	id, err := uow.Posts.AddOne(ctx, in.fields())
	if err != nil {
		return nil, err
	}
	return byID(ctx, uow.Posts, entityPost, id)
}

func updatePost(ctx context.Context, uow *unitofwork.UnitOfWork, id int64, fields repository.Fields) (*model.Post, error) {
	updated, err := uow.Posts.Update(ctx, repository.Predicate{"id": id}, fields)
	if err != nil {
		return nil, err
	}
	return single(updated, entityPost, id)
}

func addTag(ctx context.Context, uow *unitofwork.UnitOfWork, postID, tagID int64) (*model.PostTag, error) {
	if _, err := byID(ctx, uow.Posts, entityPost, postID); err != nil {
		return nil, err
	}
	if _, err := byID(ctx, uow.Tags, entityTag, tagID); err != nil {
		return nil, err
	}

	key := repository.Predicate{"post_id": postID, "tag_id": tagID}
	existing, err := uow.PostTags.FindOne(ctx, key)
	if err != nil || existing != nil {
		return existing, err
	}
	if _, err := uow.PostTags.AddOne(ctx, repository.Fields(key)); err != nil {
		return nil, err
	}
	return uow.PostTags.FindOne(ctx, key)
}

func addCategory(ctx context.Context, uow *unitofwork.UnitOfWork, postID, categoryID int64) (*model.PostCategory, error) {
	if _, err := byID(ctx, uow.Posts, entityPost, postID); err != nil {
		return nil, err
	}
	if _, err := byID(ctx, uow.Categories, entityCategory, categoryID); err != nil {
		return nil, err
	}

	key := repository.Predicate{"post_id": postID, "category_id": categoryID}
	existing, err := uow.PostCategories.FindOne(ctx, key)
	if err != nil || existing != nil {
		return existing, err
	}
	if _, err := uow.PostCategories.AddOne(ctx, repository.Fields(key)); err != nil {
		return nil, err
	}
	return uow.PostCategories.FindOne(ctx, key)
}
