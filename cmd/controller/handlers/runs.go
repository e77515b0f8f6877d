package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/reanahub/reana-workflow-controller/pkg/api/types/errors"
	apiruns "github.com/reanahub/reana-workflow-controller/pkg/api/types/runs"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	rundb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
	runmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager"
)

// translate run lifecycle errors into the API error taxonomy.
func runError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrMissing):
		return apierr.NotFound()
	case errors.Is(err, domain.ErrInvalidState):
		return apierr.Conflict("prohibited status change", apierr.WithError(err))
	case errors.Is(err, domain.ErrWorkspaceConflict):
		return apierr.Conflict(
			"workspace is busy",
			apierr.WithAdvice("wait until the other run of this workspace settles, then retry"),
			apierr.WithError(err),
		)
	case errors.Is(err, domain.ErrQuotaExceeded):
		return apierr.Forbidden("disk quota exceeded", err)
	case errors.Is(err, domain.ErrProvisioning):
		return apierr.BadGateway("cluster could not provision the run", err)
	default:
		return apierr.InternalServerError(err)
	}
}

// PUT /workflows/:id/status
//
// The requested status decides the operation: "running" starts the run,
// "stopped" stops it, "deleted" deletes it (optionally with its workspace
// or all sibling attempts). Other statuses are internal transitions and
// are rejected.
func ChangeRunStatusHandler(runs runmanager.Interface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		req := apiruns.StatusChange{}
		if err := c.Bind(&req); err != nil {
			return apierr.BadRequest(`the request body should be a JSON object with "status"`, err)
		}

		switch req.Status {
		case domain.StatusRunning.String():
			run, err := runs.Start(ctx, runId)
			if err != nil {
				return runError(err)
			}
			return c.JSON(http.StatusOK, apiruns.ComposeDetail(run))

		case domain.StatusStopped.String():
			run, err := runs.Stop(ctx, runId)
			if err != nil {
				return runError(err)
			}
			return c.JSON(http.StatusOK, apiruns.ComposeDetail(run))

		case domain.StatusDeleted.String():
			err := runs.Delete(ctx, runId, runmanager.DeleteOptions{
				Workspace: req.DeleteWorkspace,
				AllRuns:   req.AllRuns,
			})
			if err != nil {
				return runError(err)
			}
			return c.NoContent(http.StatusNoContent)

		default:
			return apierr.BadRequest(
				`"status" should be one of "running", "stopped" or "deleted"`, nil,
			)
		}
	}
}

// POST /workflows/:id/restart
func RestartRunHandler(runs runmanager.Interface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		run, err := runs.Restart(ctx, runId)
		if err != nil {
			return runError(err)
		}

		return c.JSON(http.StatusOK, apiruns.ComposeDetail(run))
	}
}

// GET /workflows/:id/progress
func GetRunProgressHandler(dbRun rundb.RunInterface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		run, err := dbRun.Get(ctx, runId)
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apiruns.ComposeDetail(run))
	}
}

// GET /workflows/:id/logs
func GetRunLogsHandler(dbRun rundb.RunInterface, paramRunId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		runId := c.Param(paramRunId)
		ctx := c.Request().Context()

		// the run must exist; an empty log of an existing run is not a 404.
		if _, err := dbRun.Get(ctx, runId); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}

		logs, err := dbRun.Logs(ctx, runId)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apiruns.LogResponse{RunId: runId, Logs: logs})
	}
}
