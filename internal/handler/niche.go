package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/nichescope/internal/cluster"
	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/middleware"
	"github.com/mathieu-neron/nichescope/internal/model"
	"github.com/mathieu-neron/nichescope/internal/service"
)

type NicheHandler struct {
	svc *service.NicheService
}

func NewNicheHandler(svc *service.NicheService) *NicheHandler {
	return &NicheHandler{svc: svc}
}

// Analyze handles POST /api/niches/analyze
func (h *NicheHandler) Analyze(c fiber.Ctx) error {
	var req model.AnalyzeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if errMsg := middleware.ValidateAnalyzeRequest(&req); errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.UserID = middleware.UserID(c)

	start := time.Now()
	run, err := h.svc.Analyze(c.Context(), req)
	if err != nil {
		Metrics.AnalysesTotal.WithLabelValues("error", "").Inc()
		switch {
		case errors.Is(err, service.ErrNoVideos):
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NO_VIDEOS", "No videos found for this query")
		case errors.Is(err, cluster.ErrNoClusters):
			return middleware.ErrorResponse(c, fiber.StatusUnprocessableEntity, "NO_NICHES",
				"Could not group these videos into niches. Try a broader query.")
		}
		logging.Component("niche").Error().Err(err).Str("query", req.Query).Msg("analysis failed")
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to analyze niche")
	}

	Metrics.AnalysesTotal.WithLabelValues("ok", run.Clusterer).Inc()
	if run.Cached {
		Metrics.CacheHits.Inc()
	} else {
		Metrics.CacheMisses.Inc()
		Metrics.AnalysisDuration.WithLabelValues(run.Clusterer).Observe(time.Since(start).Seconds())
	}

	return c.JSON(run)
}

// Score handles POST /api/niches/score
func (h *NicheHandler) Score(c fiber.Ctx) error {
	var req model.ScoreRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if len(req.Videos) == 0 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_FIELDS", "videos is required")
	}
	if len(req.Videos) > middleware.MaxScoreVideos {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "TOO_MANY_VIDEOS", "At most 500 videos can be scored at once")
	}

	Metrics.ScoredVideosTotal.Add(float64(len(req.Videos)))
	return c.JSON(h.svc.Score(req.Videos))
}

// History handles GET /api/niches/history?limit=&offset=
func (h *NicheHandler) History(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit")
	offset := fiber.Query[int](c, "offset")

	runs, err := h.svc.History(c.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch history")
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// GetRun handles GET /api/niches/history/:id?sort=&minOpportunity=&maxSaturation=&specificity=
func (h *NicheHandler) GetRun(c fiber.Ctx) error {
	run, ok, err := h.ownedRun(c)
	if !ok {
		return err
	}

	sortBy := fiber.Query[string](c, "sort")
	if sortBy != "" && !service.ValidSortKeys[sortBy] {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD",
			"sort must be one of: opportunity, views, vph, saturation, trend, channels")
	}
	specificity, errMsg := middleware.ValidateSpecificity(fiber.Query[string](c, "specificity"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	opts := service.FilterOptions{
		MinOpportunity: fiber.Query[int](c, "minOpportunity"),
		MaxSaturation:  fiber.Query[int](c, "maxSaturation"),
		Specificity:    specificity,
	}
	if opts.MinOpportunity < 0 || opts.MinOpportunity > 100 || opts.MaxSaturation < 0 || opts.MaxSaturation > 100 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD",
			"minOpportunity and maxSaturation must be between 0 and 100")
	}

	run.Niches = service.FilterNiches(run.Niches, opts)
	service.SortNiches(run.Niches, sortBy)
	return c.JSON(run)
}

// DeleteRun handles DELETE /api/niches/history/:id
func (h *NicheHandler) DeleteRun(c fiber.Ctx) error {
	id, errMsg := middleware.ValidateRunID(c.Params("id"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if err := h.svc.DeleteRun(c.Context(), middleware.UserID(c), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Analysis not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete analysis")
	}
	return c.JSON(fiber.Map{"success": true})
}

// Refresh handles POST /api/niches/history/:id/refresh
func (h *NicheHandler) Refresh(c fiber.Ctx) error {
	run, ok, err := h.ownedRun(c)
	if !ok {
		return err
	}

	if err := h.svc.RequestRefresh(c.Context(), run.ID); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to queue refresh")
	}
	Metrics.RefreshRequests.Inc()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": run.ID, "status": "queued"})
}

// ownedRun loads the run named by :id and checks it belongs to the caller.
// When ok is false the error response has already been written.
func (h *NicheHandler) ownedRun(c fiber.Ctx) (run *model.AnalysisRun, ok bool, err error) {
	id, errMsg := middleware.ValidateRunID(c.Params("id"))
	if errMsg != "" {
		return nil, false, middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	run, err = h.svc.GetRun(c.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Analysis not found")
		}
		return nil, false, middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch analysis")
	}
	if run.UserID != middleware.UserID(c) {
		return nil, false, middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Analysis not found")
	}
	return run, true, nil
}
