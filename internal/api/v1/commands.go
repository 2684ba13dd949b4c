package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craft-brew/queue-ingest/internal/commands"
	httperr "github.com/craft-brew/queue-ingest/internal/core/errors"
	"github.com/craft-brew/queue-ingest/internal/protocol"
)

// HandlePostCommand handles POST /v1/fridge/commands
// The body carries the command name and an optional value; validation rules
// depend on the command. Accepted commands return 202 with the generated ID,
// completion arrives asynchronously through the acknowledgement topic.
func (s *Service) HandlePostCommand(c *gin.Context) {
	var req struct {
		Cmd   string      `json:"cmd" binding:"required"`
		Value interface{} `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	cmd := protocol.Command(req.Cmd)
	if !cmd.Valid() {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidCommandError,
			Message:   "Unknown command",
			Details:   req.Cmd,
		})
		return
	}

	id, err := s.ledger.Publish(c.Request.Context(), cmd, req.Value)
	if err != nil && id == "" {
		if errors.Is(err, commands.ErrInvalidValue) {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidCommandError,
				Message:   "Invalid command value",
				Details:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
			ErrorType: httperr.HttpPublishFailedError,
			Message:   "Failed to dispatch command",
			Details:   err.Error(),
		})
		return
	}
	if err != nil {
		// The broker accepted the publish and only the ledger row failed;
		// the device will still act on the command.
		slog.Error("[API] Command dispatched but ledger write failed", "cmd_id", id, "error", err)
	}

	// Reflect the new target in the live status right away; the device echoes
	// it on its next report anyway.
	if cmd == protocol.CmdSetTarget {
		target, _ := protocol.ValidateCommandValue(cmd, req.Value)
		if err := s.cache.SetTarget(c.Request.Context(), target); err != nil {
			slog.Error("[API] Failed to update cached target", "error", err)
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"cmd_id": id})
}
