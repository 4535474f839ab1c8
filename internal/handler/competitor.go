package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/nichescope/internal/middleware"
	"github.com/mathieu-neron/nichescope/internal/model"
	"github.com/mathieu-neron/nichescope/internal/service"
	"github.com/mathieu-neron/nichescope/internal/youtube"
)

type CompetitorHandler struct {
	svc *service.CompetitorService
}

func NewCompetitorHandler(svc *service.CompetitorService) *CompetitorHandler {
	return &CompetitorHandler{svc: svc}
}

// List handles GET /api/competitors
func (h *CompetitorHandler) List(c fiber.Ctx) error {
	channels, err := h.svc.List(c.Context(), middleware.UserID(c))
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list competitors")
	}
	return c.JSON(fiber.Map{"channels": channels})
}

// Track handles POST /api/competitors
func (h *CompetitorHandler) Track(c fiber.Ctx) error {
	var req model.TrackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	channelID, errMsg := middleware.ValidateChannelID(req.ChannelID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	ch, err := h.svc.Track(c.Context(), middleware.UserID(c), channelID)
	if err != nil {
		if errors.Is(err, youtube.ErrChannelNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "CHANNEL_NOT_FOUND", "YouTube channel not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to track channel")
	}

	Metrics.CompetitorsAdded.Inc()
	return c.Status(fiber.StatusCreated).JSON(ch)
}

// Untrack handles DELETE /api/competitors/:channelId
func (h *CompetitorHandler) Untrack(c fiber.Ctx) error {
	channelID, errMsg := middleware.ValidateChannelID(c.Params("channelId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if err := h.svc.Untrack(c.Context(), middleware.UserID(c), channelID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Channel is not tracked")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to untrack channel")
	}
	return c.JSON(fiber.Map{"success": true})
}

// Snapshots handles GET /api/competitors/:channelId/snapshots?limit=
func (h *CompetitorHandler) Snapshots(c fiber.Ctx) error {
	channelID, errMsg := middleware.ValidateChannelID(c.Params("channelId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	tracked, err := h.svc.IsTracked(c.Context(), middleware.UserID(c), channelID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch snapshots")
	}
	if !tracked {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Channel is not tracked")
	}

	snapshots, err := h.svc.Snapshots(c.Context(), channelID, fiber.Query[int](c, "limit"))
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch snapshots")
	}
	return c.JSON(fiber.Map{"snapshots": snapshots})
}
