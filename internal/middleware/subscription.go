package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/model"
)

const (
	userIDLocal = "userId"
	planLocal   = "plan"
)

// SubscriptionLookup resolves a user's billing plan.
type SubscriptionLookup interface {
	FindByUserID(ctx context.Context, userID string) (*model.Subscription, error)
}

// QuotaCounter counts analyses per user per day.
type QuotaCounter interface {
	DailyAnalyses(ctx context.Context, userID string, day time.Time) (int64, error)
	IncrDailyAnalyses(ctx context.Context, userID string, day time.Time) (int64, error)
}

// RequireUser rejects requests without a valid X-User-ID header and stores
// the normalized id for handlers (see UserID).
func RequireUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		userID, msg := ValidateUserID(c.Get("X-User-ID"))
		if msg != "" {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", msg)
		}
		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the user id stored by RequireUser, or "".
func UserID(c fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}

// Plan returns the plan resolved by RequirePlan, or "".
func Plan(c fiber.Ctx) string {
	plan, _ := c.Locals(planLocal).(string)
	return plan
}

// RequirePlan gates an endpoint by subscription. Users with an active paid
// plan pass through; everyone else gets freeDaily successful requests per UTC
// day, counted in quota. A request is charged only when the handler answers
// with a 2xx status. It must run after RequireUser.
//
// Subscription lookup and counter failures let the request through.
func RequirePlan(subs SubscriptionLookup, quota QuotaCounter, freeDaily int) fiber.Handler {
	log := logging.Component("plan")

	return func(c fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "X-User-ID header is required")
		}
		now := time.Now()

		sub, err := subs.FindByUserID(c.Context(), userID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Msg("subscription lookup failed")
			c.Locals(planLocal, model.PlanFree)
			return c.Next()
		}
		if sub.Active(now) {
			c.Locals(planLocal, sub.Plan)
			return c.Next()
		}
		c.Locals(planLocal, model.PlanFree)

		if freeDaily <= 0 {
			return ErrorResponse(c, fiber.StatusPaymentRequired, "PLAN_LIMIT",
				"This feature requires a paid plan")
		}

		used, err := quota.DailyAnalyses(c.Context(), userID, now)
		if err != nil {
			log.Warn().Err(err).Msg("quota lookup failed")
			return c.Next()
		}
		if used >= int64(freeDaily) {
			setRemaining(c, 0)
			return ErrorResponse(c, fiber.StatusPaymentRequired, "PLAN_LIMIT",
				fmt.Sprintf("Free plan allows %d analyses per day. Upgrade for unlimited analyses.", freeDaily))
		}

		if err := c.Next(); err != nil {
			setRemaining(c, int64(freeDaily)-used)
			return err
		}
		if status := c.Response().StatusCode(); status < 200 || status > 299 {
			setRemaining(c, int64(freeDaily)-used)
			return nil
		}

		charged, err := quota.IncrDailyAnalyses(c.Context(), userID, now)
		if err != nil {
			log.Warn().Err(err).Msg("quota counter failed")
			charged = used + 1
		}
		setRemaining(c, int64(freeDaily)-charged)
		return nil
	}
}

func setRemaining(c fiber.Ctx, remaining int64) {
	c.Set("X-Analyses-Remaining", strconv.FormatInt(max(remaining, 0), 10))
}
