package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc MembershipService, dir BoardDirectory, streams Subscriber, auth Authenticator, db Pinger, logger *log.Logger) {
	e.POST("/api/tasks/:taskId/memberships", createTaskMembership(svc, auth, logger), GzipRequestMiddleware())
	e.DELETE("/api/task-memberships/:id", deleteTaskMembership(svc, auth, logger))
	e.GET("/api/boards/:boardId/stream", streamBoard(dir, streams, auth))
	e.GET("/healthz", healthz(db))
}

func healthz(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			if err := db.Ping(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	}
}

// actorID authenticates the request and parses the token subject into a
// user identifier.
func actorID(c echo.Context, auth Authenticator) (domain.ID, error) {
	sub, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return 0, err
	}
	id, err := domain.ParseID(sub)
	if err != nil {
		return 0, errBadAuthorization
	}
	return id, nil
}

// domainStatus maps the error taxonomy onto HTTP statuses. Uncoded
// errors are server faults.
func domainStatus(err error) int {
	switch domain.ErrCode(err) {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(c echo.Context, err error) error {
	status := domainStatus(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		return c.JSON(status, errorResponse{Error: "internal server error"})
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func createTaskMembership(svc MembershipService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newRequestMetrics("tasks.memberships.create", logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actor, authErr := actorID(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		taskID, parseErr := domain.ParseID(c.Param("taskId"))
		if parseErr != nil {
			metrics.SetErrorStage("invalid_task_id")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task id"})
			return err
		}

		lr := io.LimitReader(c.Request().Body, createBodyMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var body createMembershipRequest
		if decodeErr := dec.Decode(&body); decodeErr != nil || body.UserID <= 0 {
			metrics.SetErrorStage("invalid_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}

		serviceStart := time.Now()
		item, svcErr := svc.Create(c.Request().Context(), actor, taskID, body.UserID)
		metrics.ObserveService(time.Since(serviceStart))
		if svcErr != nil {
			metrics.SetErrorStage("service")
			err = writeDomainError(c, svcErr)
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, itemResponse{Item: item})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func deleteTaskMembership(svc MembershipService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newRequestMetrics("task-memberships.delete", logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		actor, authErr := actorID(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			return err
		}

		id, parseErr := domain.ParseID(c.Param("id"))
		if parseErr != nil {
			metrics.SetErrorStage("invalid_id")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid membership id"})
			return err
		}

		serviceStart := time.Now()
		item, svcErr := svc.Delete(c.Request().Context(), actor, id)
		metrics.ObserveService(time.Since(serviceStart))
		if svcErr != nil {
			metrics.SetErrorStage("service")
			err = writeDomainError(c, svcErr)
			return err
		}

		err = c.JSON(http.StatusOK, itemResponse{Item: item})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

// streamBoard serves the per-board SSE feed. Tokens may arrive in the
// Authorization header or, for EventSource clients, a query parameter.
func streamBoard(dir BoardDirectory, streams Subscriber, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		sub, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
		}
		userID, err := domain.ParseID(sub)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: errBadAuthorization.Error()})
		}
		boardID, err := domain.ParseID(c.Param("boardId"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid board id"})
		}

		ctx := c.Request().Context()
		isMember, err := dir.IsBoardMember(ctx, boardID, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		}
		if !isMember {
			// Outsiders cannot learn whether the board exists.
			return c.JSON(http.StatusNotFound, errorResponse{Error: "board not found"})
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "stream unsupported"})
		}

		ch, cancel := streams.Subscribe(boardID)
		defer cancel()

		if _, err := c.Response().Write([]byte(": connected\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		// Heartbeat comments keep the connection alive through proxies.
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case ev, ok := <-ch:
				if !ok {
					return nil
				}
				data, err := json.Marshal(ev)
				if err != nil {
					c.Logger().Error(err)
					continue
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
