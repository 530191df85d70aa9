package api

import (
	"errors"
	"net/http"

	"github.com/park285/cheese-trainer/internal/drills"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

func badRequest(msg string) error {
	return trainerdto.NewError(trainerdto.CodeBadRequest, msg)
}

func forbiddenOrigin(origin string) error {
	return trainerdto.NewError(trainerdto.CodeForbiddenOrigin, "origin not allowed: "+origin)
}

// toDomain maps package errors onto the wire error.
func toDomain(err error) trainerdto.DomainError {
	var de trainerdto.DomainError
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, ErrSessionNotFound):
		return trainerdto.NewError(trainerdto.CodeSessionNotFound, err.Error())
	case errors.Is(err, drills.ErrDrillNotFound):
		return trainerdto.NewError(trainerdto.CodeDrillNotFound, err.Error())
	default:
		return trainerdto.DomainError{Code: trainerdto.CodeInternal, Message: err.Error(), Retryable: true}
	}
}

func statusFor(code string) int {
	switch code {
	case trainerdto.CodeBadRequest:
		return http.StatusBadRequest
	case trainerdto.CodeSessionNotFound, trainerdto.CodeDrillNotFound, trainerdto.CodeNotFound:
		return http.StatusNotFound
	case trainerdto.CodeNotCoachMode:
		return http.StatusConflict
	case trainerdto.CodeForbiddenOrigin:
		return http.StatusForbidden
	case trainerdto.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	de := toDomain(err)
	writeJSON(w, statusFor(de.Code), de)
}
