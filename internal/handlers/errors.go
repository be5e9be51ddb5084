package handlers

import (
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/pkg/logger"
)

// respondError is the single place where service errors become HTTP
// statuses. Handlers never decide authorization outcomes themselves.
func respondError(c *drift.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.Unauthenticated:
		c.Unauthorized(err.Error())
	case apperr.NotFound:
		c.NotFound(err.Error())
	case apperr.PermissionDenied:
		c.Forbidden(err.Error())
	case apperr.Conflict, apperr.InvariantViolation:
		_ = c.JSON(409, map[string]string{"error": err.Error()})
	case apperr.InvalidAssignment, apperr.InvalidTransition:
		c.BadRequest(err.Error())
	default:
		logger.Error().Err(err).Msg("internal error")
		c.InternalServerError("internal server error")
	}
}
