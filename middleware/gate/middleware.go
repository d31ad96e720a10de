package gate

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
)

// Recorder counts gate decisions by rule.
type Recorder interface {
	GateDecision(rule string)
}

// Middleware runs the gate ahead of routing; register it with echo's Pre.
func Middleware(p Policy, recorder Recorder, logger *logging.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := RequestFrom(c.Request())
			d := Evaluate(p, req)

			if recorder != nil {
				recorder.GateDecision(d.Rule)
			}

			header := c.Response().Header()
			for k, vs := range d.Headers {
				for _, v := range vs {
					header.Add(k, v)
				}
			}

			switch d.Action {
			case Respond:
				return c.NoContent(d.Status)
			case Redirect:
				logger.Debug("gate redirect",
					zap.String("rule", d.Rule),
					zap.String("path", req.Path),
					zap.String("location", d.Location))
				return c.Redirect(d.Status, d.Location)
			}
			return next(c)
		}
	}
}
