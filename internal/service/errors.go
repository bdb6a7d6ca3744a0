package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrValidation struct {
	error
}

func NewErrValidation(message string) *ErrValidation {
	return &ErrValidation{fmt.Errorf("invalid request: %s", message)}
}

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrReportNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "report")
}

type ErrProjectFetchFailed struct {
	error
}

func NewErrProjectFetchFailed(projectID string, err error) *ErrProjectFetchFailed {
	return &ErrProjectFetchFailed{fmt.Errorf("failed to fetch project %s: %v", projectID, err)}
}
