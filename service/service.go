// Package service implements the blog use cases on top of the unit of work.
// Every exported method runs in exactly one scope: it commits when the
// method succeeds and rolls back otherwise.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-blogstore/access"
	"github.com/goliatone/go-blogstore/repository"
	"github.com/goliatone/go-blogstore/unitofwork"
)

// Services groups the domain services sharing one factory.
type Services struct {
	Posts      *PostService
	Comments   *CommentService
	Tags       *TagService
	Categories *CategoryService

	factory *unitofwork.Factory
}

// New builds every service over f.
func New(f *unitofwork.Factory) *Services {
	return &Services{
		Posts:      &PostService{factory: f},
		Comments:   &CommentService{factory: f},
		Tags:       &TagService{factory: f},
		Categories: &CategoryService{factory: f},
		factory:    f,
	}
}

// Factory returns the unit of work factory the services run on.
func (s *Services) Factory() *unitofwork.Factory {
	return s.factory
}

// StatusCode maps an error returned by a service onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrTransientStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func notFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s #%d", repository.ErrNotFound, entity, id)
}

func notFoundName(entity, name string) error {
	return fmt.Errorf("%w: %s %q", repository.ErrNotFound, entity, name)
}

// invalid wraps ozzo validation errors so they match repository.ErrValidation.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", repository.ErrValidation, err)
}

func validate(v validation.Validatable) error {
	return invalid(v.Validate())
}

func validID(name string, id int64) error {
	return invalid(validation.Errors{
		name: validation.Validate(id, validation.Required, validation.Min(int64(1))),
	}.Filter())
}

// byID loads the record with the given surrogate id or fails with
// ErrNotFound.
func byID[T any](ctx context.Context, repo repository.Repository[T], entity string, id int64) (*T, error) {
	rec, err := repo.FindOne(ctx, repository.Predicate{"id": id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(entity, id)
	}
	return rec, nil
}

// single returns the only updated record or ErrNotFound when none matched.
func single[T any](records []T, entity string, id int64) (*T, error) {
	if len(records) == 0 {
		return nil, notFound(entity, id)
	}
	return &records[0], nil
}
