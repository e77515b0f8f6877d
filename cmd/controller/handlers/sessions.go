package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/reanahub/reana-workflow-controller/pkg/api/types/errors"
	apisessions "github.com/reanahub/reana-workflow-controller/pkg/api/types/sessions"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	rundb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
	sessionmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager"
)

// POST /workflows/:id/session
func CreateSessionHandler(
	dbRun rundb.RunInterface,
	sessions sessionmanager.Interface,
	paramRunId string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		req := apisessions.CreateRequest{}
		if err := c.Bind(&req); err != nil {
			return apierr.BadRequest(`the request body should be a JSON object with "kind"`, err)
		}
		if req.Kind == "" {
			req.Kind = string(domain.SessionJupyter)
		}
		kind, err := domain.AsSessionKind(req.Kind)
		if err != nil {
			return apierr.BadRequest(`"kind" should be "jupyter"`, err)
		}

		run, err := dbRun.Get(ctx, runId)
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		session, accessURL, err := sessions.Create(ctx, run, kind)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSessionConflict):
				return apierr.Conflict(
					"the workspace already has an open session",
					apierr.WithAdvice("close the existing session first"),
					apierr.WithError(err),
				)
			case errors.Is(err, domain.ErrProvisioning):
				return apierr.BadGateway("cluster could not provision the session", err)
			}
			return apierr.InternalServerError(err)
		}

		resp := apisessions.ComposeDetail(session)
		resp.AccessURL = accessURL
		return c.JSON(http.StatusCreated, resp)
	}
}

// GET /workflows/:id/session
func GetSessionHandler(sessions sessionmanager.Interface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		session, phase, err := sessions.Get(ctx, runId)
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		resp := apisessions.ComposeDetail(session)
		resp.Status = string(phase)
		return c.JSON(http.StatusOK, resp)
	}
}

// DELETE /workflows/:id/session
func DeleteSessionHandler(sessions sessionmanager.Interface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		if err := sessions.Delete(ctx, runId); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}
