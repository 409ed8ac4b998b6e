package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/searchforge/searchforge/internal/degrade"
	appErr "github.com/searchforge/searchforge/internal/pkg/errors"
	"github.com/searchforge/searchforge/internal/pkg/errcode"
	"github.com/searchforge/searchforge/internal/pkg/response"
)

// handleError maps a failure onto the API envelope. Degradation events
// expose only their user-facing message; the technical one stays in logs.
func handleError(c *gin.Context, err error) {
	// Sentinels first: a classified event may still wrap one.
	switch {
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
		return
	case appErr.IsConflict(err):
		response.Error(c, errcode.ErrConflict, "conflicting update, please retry")
		return
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	var ev *degrade.Event
	if errors.As(err, &ev) {
		switch ev.Kind {
		case degrade.KindRateLimited:
			response.Error(c, errcode.ErrTooMany, ev.UserMessage)
		case degrade.KindDatabaseUnavailable, degrade.KindServiceUnavailable:
			response.Error(c, errcode.ErrInternal, ev.UserMessage)
		default:
			response.Error(c, errcode.ErrSearchFailed, ev.UserMessage)
		}
		return
	}
	response.Error(c, errcode.ErrInternal, "internal error")
}

// bindJSON decodes an optional JSON body. A body-less request decodes to the
// zero value so field-level validation can report what is actually missing.
func bindJSON(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
