package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	handlers "github.com/reanahub/reana-workflow-controller/cmd/controller/handlers"
	httptestutil "github.com/reanahub/reana-workflow-controller/internal/testutils/http"
	apisessions "github.com/reanahub/reana-workflow-controller/pkg/api/types/sessions"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	"github.com/reanahub/reana-workflow-controller/pkg/domain/kubernetes/cluster"
	dbmock "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db/mock"
	sessionmock "github.com/reanahub/reana-workflow-controller/pkg/domain/session/manager/mock"
)

func aSession() domain.Session {
	return domain.Session{
		Name:      "session-run-1",
		RunId:     "run-1",
		OwnerId:   "owner-1",
		Workspace: "/workspaces/run-1",
		Kind:      domain.SessionJupyter,
		Path:      "/sessions/deadbeef",
		CreatedAt: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateSessionHandler(t *testing.T) {

	t.Run("it opens a session and returns the access url", func(t *testing.T) {
		dbRun := dbmock.NewRunInterface()
		dbRun.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		sessions := sessionmock.New(t)
		sessions.Impl.Create = func(_ context.Context, r domain.Run, kind domain.SessionKind) (domain.Session, string, error) {
			if r.Id != "run-1" || kind != domain.SessionJupyter {
				t.Errorf("unexpected session requested: run %s, kind %s", r.Id, kind)
			}
			return aSession(), "https://reana.example/sessions/deadbeef?token=xyz", nil
		}

		e := echo.New()
		c, respRec := httptestutil.Post(
			e, "/api/workflows/run-1/session",
			strings.NewReader(`{"kind": "jupyter"}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.CreateSessionHandler(dbRun, sessions, "runId")
		if err := testee(c); err != nil {
			t.Fatalf("handler failed: %v", err)
		}

		if respRec.Result().StatusCode != http.StatusCreated {
			t.Errorf("status code %d != %d", respRec.Result().StatusCode, http.StatusCreated)
		}
		resp := apisessions.Detail{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not a session detail: %v", err)
		}
		if resp.AccessURL != "https://reana.example/sessions/deadbeef?token=xyz" {
			t.Errorf("unexpected access url: %s", resp.AccessURL)
		}
		if resp.RunId != "run-1" || resp.Kind != "jupyter" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("it defaults the kind to jupyter", func(t *testing.T) {
		dbRun := dbmock.NewRunInterface()
		dbRun.Impl.Get = func(context.Context, string) (domain.Run, error) {
			return aRun(domain.StatusRunning), nil
		}
		sessions := sessionmock.New(t)
		sessions.Impl.Create = func(_ context.Context, _ domain.Run, kind domain.SessionKind) (domain.Session, string, error) {
			if kind != domain.SessionJupyter {
				t.Errorf("unexpected kind: %s", kind)
			}
			return aSession(), "https://reana.example/sessions/deadbeef?token=xyz", nil
		}

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/workflows/run-1/session",
			strings.NewReader(`{}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.CreateSessionHandler(dbRun, sessions, "runId")
		if err := testee(c); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
	})

	t.Run("it rejects an unknown kind", func(t *testing.T) {
		dbRun := dbmock.NewRunInterface()
		sessions := sessionmock.New(t)

		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/workflows/run-1/session",
			strings.NewReader(`{"kind": "rstudio"}`),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.CreateSessionHandler(dbRun, sessions, "runId")
		err := testee(c)
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) {
			t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
		}
		if echoErr.Code != http.StatusBadRequest {
			t.Errorf("unmatch error code:%d, expected:%d", echoErr.Code, http.StatusBadRequest)
		}
	})

	t.Run("it maps failures onto the error taxonomy", func(t *testing.T) {
		for name, testcase := range map[string]struct {
			getErr     error
			createErr  error
			statusCode int
		}{
			"unknown run -> 404":          {getErr: domain.ErrMissing, statusCode: http.StatusNotFound},
			"open session -> 409":         {createErr: domain.ErrSessionConflict, statusCode: http.StatusConflict},
			"provisioning failure -> 502": {createErr: domain.ErrProvisioning, statusCode: http.StatusBadGateway},
			"anything else -> 500":        {createErr: errors.New("dummy SQL err"), statusCode: http.StatusInternalServerError},
		} {
			t.Run(name, func(t *testing.T) {
				dbRun := dbmock.NewRunInterface()
				dbRun.Impl.Get = func(context.Context, string) (domain.Run, error) {
					if testcase.getErr != nil {
						return domain.Run{}, testcase.getErr
					}
					return aRun(domain.StatusRunning), nil
				}
				sessions := sessionmock.New(t)
				sessions.Impl.Create = func(context.Context, domain.Run, domain.SessionKind) (domain.Session, string, error) {
					return domain.Session{}, "", testcase.createErr
				}

				e := echo.New()
				c, _ := httptestutil.Post(
					e, "/api/workflows/run-1/session",
					strings.NewReader(`{"kind": "jupyter"}`),
					httptestutil.ContentType("application/json"),
				)
				c.SetParamNames("runId")
				c.SetParamValues("run-1")

				testee := handlers.CreateSessionHandler(dbRun, sessions, "runId")
				err := testee(c)
				if err == nil {
					t.Fatal("error is nothing")
				}
				var echoErr *echo.HTTPError
				if !errors.As(err, &echoErr) {
					t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
				}
				if echoErr.Code != testcase.statusCode {
					t.Errorf("unmatch error code:%d, expected:%d", echoErr.Code, testcase.statusCode)
				}
			})
		}
	})
}

func TestGetSessionHandler(t *testing.T) {

	t.Run("it reports the session with its observed phase", func(t *testing.T) {
		sessions := sessionmock.New(t)
		sessions.Impl.Get = func(_ context.Context, runId string) (domain.Session, cluster.PodPhase, error) {
			if runId != "run-1" {
				t.Errorf("unexpected run queried: %s", runId)
			}
			return aSession(), cluster.PodRunning, nil
		}

		e := echo.New()
		c, respRec := httptestutil.Get(e, "/api/workflows/run-1/session")
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.GetSessionHandler(sessions, "runId")
		if err := testee(c); err != nil {
			t.Fatalf("handler failed: %v", err)
		}

		resp := apisessions.Detail{}
		if err := json.Unmarshal(respRec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not a session detail: %v", err)
		}
		if resp.Status != string(cluster.PodRunning) {
			t.Errorf("unexpected phase: %s", resp.Status)
		}
		if resp.AccessURL != "" {
			t.Error("the access url should only be returned on creation")
		}
	})

	t.Run("it returns 404 when no session is open", func(t *testing.T) {
		sessions := sessionmock.New(t)
		sessions.Impl.Get = func(context.Context, string) (domain.Session, cluster.PodPhase, error) {
			return domain.Session{}, "", domain.ErrMissing
		}

		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/workflows/run-1/session")
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.GetSessionHandler(sessions, "runId")
		err := testee(c)
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) {
			t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
		}
		if echoErr.Code != http.StatusNotFound {
			t.Errorf("unmatch error code:%d, expected:%d", echoErr.Code, http.StatusNotFound)
		}
	})
}

func TestDeleteSessionHandler(t *testing.T) {

	t.Run("it closes the session", func(t *testing.T) {
		sessions := sessionmock.New(t)
		sessions.Impl.Delete = func(_ context.Context, runId string) error {
			if runId != "run-1" {
				t.Errorf("unexpected run: %s", runId)
			}
			return nil
		}

		e := echo.New()
		c, respRec := httptestutil.Delete(e, "/api/workflows/run-1/session")
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.DeleteSessionHandler(sessions, "runId")
		if err := testee(c); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
		if respRec.Result().StatusCode != http.StatusNoContent {
			t.Errorf("status code %d != %d", respRec.Result().StatusCode, http.StatusNoContent)
		}
	})

	t.Run("it returns 500 on store failures", func(t *testing.T) {
		sessions := sessionmock.New(t)
		sessions.Impl.Delete = func(context.Context, string) error {
			return errors.New("dummy SQL err")
		}

		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/workflows/run-1/session")
		c.SetParamNames("runId")
		c.SetParamValues("run-1")

		testee := handlers.DeleteSessionHandler(sessions, "runId")
		err := testee(c)
		var echoErr *echo.HTTPError
		if !errors.As(err, &echoErr) {
			t.Fatalf("error is not echo.HTTPError. actual = %#v", err)
		}
		if echoErr.Code != http.StatusInternalServerError {
			t.Errorf("unmatch error code:%d, expected:%d", echoErr.Code, http.StatusInternalServerError)
		}
	})
}
