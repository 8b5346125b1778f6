package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fleet-dashboard/internal/agent"
	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/services"
	"fleet-dashboard/internal/viewmodel"

	"github.com/labstack/echo/v4"
)

// screen is the response of every dashboard endpoint.
type screen struct {
	State viewmodel.State `json:"state"`
	View  any             `json:"view"`
}

type askRequest struct {
	Question string `json:"question"`
}

type refreshResponse struct {
	Dropped int                    `json:"dropped"`
	Status  services.RefreshStatus `json:"status"`
}

// httpError maps service errors onto status codes. An unreachable
// warehouse answers with the remediation text instead of the raw error.
func httpError(err error) error {
	switch {
	case errors.Is(err, viewmodel.ErrInvalidEvent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, database.Remediation).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render dashboard").SetInternal(err)
	}
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Warehouse.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("warehouse ping failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"message": database.Remediation,
		})
	}
	body := map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"refresh":  s.deps.Refresh.Status(),
	}
	if s.deps.Broker != nil {
		body["mqtt_connected"] = s.deps.Broker.IsConnected()
	}
	return c.JSON(http.StatusOK, body)
}

// apply reduces events into the caller's session and performs the effects
// they ask for. The agent is asked outside the session lock; its answer is
// kept only if the question has not changed meanwhile.
func (s *Server) apply(c echo.Context, events ...viewmodel.Event) (viewmodel.State, error) {
	id := sessionID(c)

	var fx viewmodel.Effects
	st, err := s.sessions.Update(id, func(st viewmodel.State) (viewmodel.State, error) {
		for _, e := range events {
			next, efx, err := viewmodel.Reduce(st, e)
			if err != nil {
				return st, err
			}
			st = next
			fx.Refresh = fx.Refresh || efx.Refresh
			fx.Ask = fx.Ask || efx.Ask
		}
		return st, nil
	})
	if err != nil {
		return st, err
	}

	if fx.Refresh {
		s.deps.Refresh.Refresh("session " + id)
	}
	if fx.Ask && s.deps.Agent != nil {
		resp := s.deps.Agent.Ask(c.Request().Context(), st.Question)
		st, _ = s.sessions.Update(id, func(cur viewmodel.State) (viewmodel.State, error) {
			return viewmodel.WithAnswer(cur, resp), nil
		})
	}
	return st, nil
}

// applyQuery reduces the screen's query parameters into the session.
func (s *Server) applyQuery(c echo.Context) (viewmodel.State, error) {
	events, err := viewmodel.EventsFromQuery(c.QueryParams())
	if err != nil {
		return viewmodel.State{}, err
	}
	return s.apply(c, events...)
}

func (s *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sessions.Get(sessionID(c)))
}

func (s *Server) event(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := viewmodel.DecodeEvent(body)
	if err != nil {
		return httpError(err)
	}
	st, err := s.apply(c, e)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) refresh(c echo.Context) error {
	dropped := s.deps.Refresh.Refresh("api")
	return c.JSON(http.StatusOK, refreshResponse{
		Dropped: dropped,
		Status:  s.deps.Refresh.Status(),
	})
}

func (s *Server) commandCenter(c echo.Context) error {
	st, err := s.applyQuery(c)
	if err != nil {
		return httpError(err)
	}
	view, err := s.deps.CommandCenter.Render(c.Request().Context(), st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, screen{State: st, View: view})
}

func (s *Server) fleet(c echo.Context) error {
	st, err := s.applyQuery(c)
	if err != nil {
		return httpError(err)
	}
	view, err := s.deps.Fleet.Render(c.Request().Context(), st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, screen{State: st, View: view})
}

func (s *Server) hypothesis(c echo.Context) error {
	st, err := s.applyQuery(c)
	if err != nil {
		return httpError(err)
	}
	view, err := s.deps.Hypothesis.Render(c.Request().Context(), st)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, screen{State: st, View: view})
}

func (s *Server) exportProviders(c echo.Context) error {
	st, err := s.applyQuery(c)
	if err != nil {
		return httpError(err)
	}
	var buf bytes.Buffer
	if err := s.deps.Hypothesis.ExportProviders(c.Request().Context(), st, &buf); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", services.ProvidersFileName))
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) suggestions(c echo.Context) error {
	return c.JSON(http.StatusOK, agent.Suggestions())
}

func (s *Server) ask(c echo.Context) error {
	if s.deps.Agent == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "the agent is not configured")
	}
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := s.apply(c, viewmodel.AskAgent{Question: req.Question})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st.Answer)
}
