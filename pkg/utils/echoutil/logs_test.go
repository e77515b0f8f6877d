package echoutil_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	httptestutil "github.com/reanahub/reana-workflow-controller/internal/testutils/http"
	"github.com/reanahub/reana-workflow-controller/pkg/utils/echoutil"
)

func TestSetLevel(t *testing.T) {
	for name, testcase := range map[string]struct {
		loglevel string
		want     log.Lvl
	}{
		"debug":                 {loglevel: "debug", want: log.DEBUG},
		"info":                  {loglevel: "info", want: log.INFO},
		"warn":                  {loglevel: "warn", want: log.WARN},
		"error":                 {loglevel: "error", want: log.ERROR},
		"off":                   {loglevel: "off", want: log.OFF},
		"uppercase is accepted": {loglevel: "INFO", want: log.INFO},
		"unset falls back":      {loglevel: "", want: log.WARN},
		"unknown falls back":    {loglevel: "loud", want: log.WARN},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			echoutil.SetLevel(e, testcase.loglevel)
			if got := e.Logger.Level(); got != testcase.want {
				t.Errorf("unexpected level: %d (want %d)", got, testcase.want)
			}
		})
	}
}

func TestLogHandlerFunc(t *testing.T) {
	t.Run("it passes the response through unchanged", func(t *testing.T) {
		e := echo.New()
		handler := echoutil.LogHandlerFunc(func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		})

		ctx, resp := httptestutil.Get(e, "/api/runs")
		if err := handler(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("it passes the handler error through unchanged", func(t *testing.T) {
		e := echo.New()
		expected := errors.New("fake error")
		handler := echoutil.LogHandlerFunc(func(echo.Context) error {
			return expected
		})

		ctx, _ := httptestutil.Get(e, "/api/runs")
		if err := handler(ctx); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
