package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"delegate/api/internal/dao"
	"delegate/api/internal/export"
	"delegate/api/internal/identity"
	"delegate/api/internal/llm"
	"delegate/api/internal/prefs"
	"delegate/api/internal/snapshot"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var (
		domainErr  *DomainError
		notFound   *dao.NotFoundError
		noSpace    *snapshot.SpaceNotFoundError
		netErr     *snapshot.NetworkError
		gqlErr     *snapshot.GraphQLError
		genErr     *llm.GenerationError
		addressErr *identity.InvalidAddressError
	)
	switch {
	case errors.As(err, &domainErr):
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	case errors.As(err, &notFound):
		return http.StatusNotFound, "NOT_FOUND", notFound.Error(), map[string]any{"ref": notFound.Ref}
	case errors.As(err, &noSpace):
		return http.StatusNotFound, "NOT_FOUND", noSpace.Error(), map[string]any{"space": noSpace.ID}
	case errors.As(err, &addressErr):
		return http.StatusBadRequest, "INVALID_ADDRESS", addressErr.Error(), nil
	case errors.Is(err, prefs.ErrNoIdentity):
		return http.StatusUnauthorized, "NO_IDENTITY", "Connect a wallet first", nil
	case errors.As(err, &netErr):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Governance hub unavailable", map[string]any{"status": netErr.Status}
	case errors.As(err, &gqlErr):
		return http.StatusBadGateway, "UPSTREAM_REJECTED", "Governance hub rejected the query", map[string]any{"messages": gqlErr.Messages}
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "GENERATION_FAILED", "Summary generation failed", map[string]any{"provider": genErr.Provider}
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, export.ErrArchiveDisabled):
		return http.StatusServiceUnavailable, "ARCHIVE_DISABLED", "Report archive is not configured", nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Upstream timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
