package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc logs each request on arrival and its outcome on return,
// with the status, the elapsed time and the handler error if any.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		start := time.Now()
		c.Logger().Infof("< %s %s", req.Method, req.URL)

		err := next(c)

		c.Logger().Infof(
			"> %s %s status = %d in %v / error = %+v",
			req.Method, req.URL, c.Response().Status, time.Since(start), err,
		)
		return err
	}
}

// SetLevel applies a log level by name. Unset falls back to warn;
// unknown names fall back to warn with a complaint.
func SetLevel(e *echo.Echo, loglevel string) {
	levels := map[string]log.Lvl{
		"debug": log.DEBUG,
		"info":  log.INFO,
		"warn":  log.WARN,
		"error": log.ERROR,
		"off":   log.OFF,
		"":      log.WARN,
	}

	name := strings.ToLower(loglevel)
	lvl, ok := levels[name]
	if !ok {
		lvl = log.WARN
	}
	e.Logger.SetLevel(lvl)
	if !ok {
		e.Logger.Warnf("unknown loglevel: %s (using warn)", loglevel)
	}
}
