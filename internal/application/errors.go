package application

import (
	"github.com/wms-platform/picking-engine/internal/domain"
	"github.com/wms-platform/picking-engine/pkg/errors"
)

func init() {
	errors.RegisterDomainError(domain.ErrInvalidLocationCode, func(err error) *errors.AppError {
		return errors.ErrValidation(err.Error())
	})
	errors.RegisterDomainError(domain.ErrBatchNotFound, func(error) *errors.AppError {
		return errors.ErrNotFound("picking batch")
	})
	errors.RegisterDomainError(domain.ErrItemNotInBatch, func(error) *errors.AppError {
		return errors.ErrNotFound("picking item")
	})
	errors.RegisterDomainError(domain.ErrConcurrentModification, func(err error) *errors.AppError {
		return errors.ErrConflict("picking batch was modified concurrently, retry the request")
	})
	errors.RegisterDomainError(domain.ErrBatchCompleted, func(err error) *errors.AppError {
		return errors.ErrConflict(domain.ErrBatchCompleted.Error())
	})
	errors.RegisterDomainError(domain.ErrBatchNotCompleted, func(err error) *errors.AppError {
		return errors.ErrConflict(domain.ErrBatchNotCompleted.Error())
	})
	errors.RegisterDomainError(domain.ErrPickerIDRequired, func(err error) *errors.AppError {
		return errors.ErrValidationWithFields("picker id is required", map[string]string{"pickerId": "is required"})
	})
}
