package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/wanderleymp/finance-api-sub001/internal/application/dto"
	"github.com/wanderleymp/finance-api-sub001/internal/domain"
	"github.com/wanderleymp/finance-api-sub001/internal/infrastructure/cache"
)

// writeError traduz erros de domínio em status HTTP e corpo ErrorResponse.
func writeError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		credMiss   *domain.CredentialsNotFoundError
		credBad    *domain.IncompleteCredentialsError
		authErr    *domain.AuthenticationError
		integr     *domain.IntegrationError
		decodeErr  *cache.DecodeError
	)
	switch {
	case errors.As(err, &validation):
		status := fiber.StatusBadRequest
		switch validation.Code {
		case domain.CodeAlreadyEmitted, domain.CodeInvalidStatus, domain.CodeEmitInProgress:
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(dto.ErrorResponse{
			Code:    validation.Code,
			Message: validation.Message,
			Details: validation.Details,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: notFound.Error(),
			Details: map[string]any{"resource": notFound.Resource, "id": notFound.ID},
		})
	case errors.As(err, &credMiss), errors.As(err, &credBad):
		log.Error().Err(err).Msg("credenciais do provedor fiscal")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Code:    "PROVIDER_CREDENTIALS",
			Message: err.Error(),
		})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Code:    "PROVIDER_AUTH",
			Message: authErr.Error(),
		})
	case errors.As(err, &integr):
		details := map[string]any{"operation": integr.Operation}
		if integr.StatusCode != 0 {
			details["upstream_status"] = integr.StatusCode
		}
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Code:    "PROVIDER_ERROR",
			Message: integr.Error(),
			Details: details,
		})
	case errors.As(err, &decodeErr):
		log.Error().Err(err).Msg("cache inconsistente")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "CACHE_CORRUPTED", Message: "tente novamente"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("erro interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}
}
