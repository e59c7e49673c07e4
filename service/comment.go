package service

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-blogstore/model"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/unitofwork"
)

const entityComment = "comment"

// CommentInput carries a new comment. ParentID makes it a reply.
type CommentInput struct {
	Content    string `json:"content"`
	PostID     int64  `json:"post_id"`
	AuthorID   int64  `json:"author_id"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	IsApproved *bool  `json:"is_approved,omitempty"`
}

func (in CommentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Content, validation.Required, validation.RuneLength(1, 0)),
		validation.Field(&in.PostID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.AuthorID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.ParentID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

func (in CommentInput) fields() repository.Fields {
	f := repository.Fields{
		"content":   in.Content,
		"post_id":   in.PostID,
		"author_id": in.AuthorID,
	}
	if in.ParentID != nil {
		f["parent_id"] = *in.ParentID
	}
	if in.IsApproved != nil {
		f["is_approved"] = *in.IsApproved
	}
	return f
}

// CommentPatch changes the non-nil fields of a comment.
type CommentPatch struct {
	Content    *string `json:"content,omitempty"`
	IsApproved *bool   `json:"is_approved,omitempty"`
}

func (p CommentPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Content, validation.NilOrNotEmpty),
	)
}

func (p CommentPatch) fields() repository.Fields {
	f := repository.Fields{}
	if p.Content != nil {
		f["content"] = *p.Content
	}
	if p.IsApproved != nil {
		f["is_approved"] = *p.IsApproved
	}
	return f
}

// CommentService manages threaded comments and their moderation state.
type CommentService struct {
	factory *unitofwork.Factory
}

// Create stores a comment. The post must exist; a parent must exist and
// belong to the same post.
func (s *CommentService) Create(ctx context.Context, in CommentInput) (*model.Comment, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Comment, error) {
		return createComment(ctx, uow, in)
	})
}

func (s *CommentService) Get(ctx context.Context, id int64) (*model.Comment, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Comment, error) {
		return byID(ctx, uow.Comments, entityComment, id)
	})
}

// ListByPost returns every comment of a post, replies included.
func (s *CommentService) ListByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Comment, error) {
		return uow.Comments.FindSome(ctx, repository.Predicate{"post_id": postID})
	})
}

// Replies returns the direct replies to a comment.
func (s *CommentService) Replies(ctx context.Context, id int64) ([]model.Comment, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Comment, error) {
		return uow.Comments.FindSome(ctx, repository.Predicate{"parent_id": id})
	})
}

func (s *CommentService) Update(ctx context.Context, id int64, patch CommentPatch) (*model.Comment, error) {
	if err := validate(patch); err != nil {
		return nil, err
	}
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Comment, error) {
		return updateComment(ctx, uow, id, patch.fields())
	})
}

// Delete removes a comment and every reply below it, deepest first, and
// returns the removed comments.
func (s *CommentService) Delete(ctx context.Context, id int64) ([]model.Comment, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) ([]model.Comment, error) {
		root, err := byID(ctx, uow.Comments, entityComment, id)
		if err != nil {
			return nil, err
		}
		thread, err := uow.Comments.FindSome(ctx, repository.Predicate{"post_id": root.PostID})
		if err != nil {
			return nil, err
		}

		levels := subtree(thread, root.ID)
		removed := make([]model.Comment, 0, len(thread))
		for i := len(levels) - 1; i >= 0; i-- {
			for _, c := range levels[i] {
				deleted, err := uow.Comments.Delete(ctx, repository.Predicate{"id": c.ID})
				if err != nil {
					return nil, err
				}
				removed = append(removed, deleted...)
			}
		}
		return removed, nil
	})
}

// Approve marks a comment as approved.
func (s *CommentService) Approve(ctx context.Context, id int64) (*model.Comment, error) {
	return s.moderate(ctx, id, true)
}

// Reject hides a comment.
func (s *CommentService) Reject(ctx context.Context, id int64) (*model.Comment, error) {
	return s.moderate(ctx, id, false)
}

func (s *CommentService) moderate(ctx context.Context, id int64, approved bool) (*model.Comment, error) {
	return unitofwork.Within(ctx, s.factory, func(ctx context.Context, uow *unitofwork.UnitOfWork) (*model.Comment, error) {
		return updateComment(ctx, uow, id, repository.Fields{"is_approved": approved})
	})
}

func createComment(ctx context.Context, uow *unitofwork.UnitOfWork, in CommentInput) (*model.Comment, error) {
	if _, err := byID(ctx, uow.Posts, entityPost, in.PostID); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		parent, err := byID(ctx, uow.Comments, "parent comment", *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, repository.Invalid("parent comment #%d belongs to post #%d", parent.ID, parent.PostID)
		}
	}

	id, err := uow.Comments.AddOne(ctx, in.fields())
	if err != nil {
		return nil, err
	}
	return byID(ctx, uow.Comments, entityComment, id)
}

func updateComment(ctx context.Context, uow *unitofwork.UnitOfWork, id int64, fields repository.Fields) (*model.Comment, error) {
	updated, err := uow.Comments.Update(ctx, repository.Predicate{"id": id}, fields)
	if err != nil {
		return nil, err
	}
	return single(updated, entityComment, id)
}

// subtree groups the comments below rootID by depth; level 0 holds the root.
func subtree(thread []model.Comment, rootID int64) [][]model.Comment {
	children := make(map[int64][]model.Comment, len(thread))
	var root *model.Comment
	for i := range thread {
		c := thread[i]
		if c.ID == rootID {
			root = &thread[i]
		}
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}
	if root == nil {
		return nil
	}

	levels := [][]model.Comment{{*root}}
	seen := map[int64]bool{root.ID: true}
	for {
		var next []model.Comment
		for _, c := range levels[len(levels)-1] {
			for _, child := range children[c.ID] {
				if !seen[child.ID] {
					seen[child.ID] = true
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return levels
		}
		levels = append(levels, next)
	}
}
