package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kaitranntt/jobhunt-sub002/domain"
	"github.com/kaitranntt/jobhunt-sub002/kanban"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, log *log.Logger) {
	e.GET("/api/applications", getApplications(store, auth, log))
	e.GET("/api/board", getBoard(store, auth))
	e.GET("/api/settings", getSettings(store, auth))
	e.POST("/api/commands", postCommands(store, auth, deduper))
	e.POST("/api/applications/:id/move", moveApplication(store, auth, deduper))
	e.GET("/healthz", healthz(store))

	initCommandSender(store, deduper, log)
}

type applicationsResponse struct {
	Applications  []domain.Application `json:"applications"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type boardStatus struct {
	Status       string               `json:"status"`
	Label        string               `json:"label"`
	Applications []domain.Application `json:"applications"`
	Total        int                  `json:"total"`
}

type boardGroup struct {
	Group      string        `json:"group"`
	Label      string        `json:"label"`
	Expandable bool          `json:"expandable"`
	Statuses   []boardStatus `json:"statuses"`
}

type boardResponse struct {
	Groups   []boardGroup    `json:"groups"`
	Settings domain.Settings `json:"settings"`
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

func getApplications(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newApplicationRequestMetrics(ctx, logger)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		pageToken := c.QueryParam("pageToken")
		metrics.SetPageTokenProvided(pageToken != "")

		pageSizeParam := strings.TrimSpace(c.QueryParam("pageSize"))
		pageSize := 0
		if pageSizeParam != "" {
			var parseErr error
			pageSize, parseErr = strconv.Atoi(pageSizeParam)
			if parseErr != nil || pageSize <= 0 {
				metrics.SetErrorStage("invalid_page_size")
				err = c.String(http.StatusBadRequest, "invalid page size")
				return err
			}
		}

		fetchStart := time.Now()
		apps, nextToken, fetchErr := store.FetchApplications(ctx, userID, pageToken, pageSize)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			var invalidTokenErr InvalidContinuationTokenError
			if errors.As(fetchErr, &invalidTokenErr) {
				metrics.SetErrorStage("invalid_page_token")
				err = c.String(http.StatusBadRequest, "invalid page token")
				return err
			}
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetApplicationsReturned(len(apps))
		resp := applicationsResponse{Applications: apps}
		if nextToken != "" {
			metrics.SetHasNextPage(true)
			resp.NextPageToken = nextToken
		}
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		apps, err := store.FetchAllApplications(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		settings, err := store.FetchSettings(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, buildBoard(apps, settings))
	}
}

// buildBoard projects a flat application list into the grouped column
// layout consumed by board clients. Applications are ordered by their
// manual sort order, each per-status column is capped at
// ApplicationsPerStatus (Total still reports the uncapped count) and
// closed columns are omitted entirely when ShowClosed is off.
func buildBoard(apps []domain.Application, settings domain.Settings) boardResponse {
	sorted := make([]domain.Application, len(apps))
	copy(sorted, apps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})

	byStatus := kanban.ByStatus(sorted)
	resp := boardResponse{Settings: settings, Groups: make([]boardGroup, 0, len(domain.Groups))}
	for _, g := range domain.Groups {
		if g == domain.GroupClosed && !settings.ShowClosed {
			continue
		}
		bg := boardGroup{Group: string(g), Label: g.Label(), Expandable: g.Expandable()}
		for _, st := range g.Statuses() {
			col := byStatus[st]
			bs := boardStatus{Status: string(st), Label: st.Label(), Total: len(col)}
			if limit := settings.ApplicationsPerStatus; limit > 0 && len(col) > limit {
				col = col[:limit]
			}
			if col == nil {
				col = []domain.Application{}
			}
			bs.Applications = col
			bg.Statuses = append(bg.Statuses, bs)
		}
		resp.Groups = append(resp.Groups, bg)
	}
	return resp
}

func getSettings(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		settings, err := store.FetchSettings(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, settings)
	}
}

// finalizeCommands assigns timestamps, idempotency keys and entity IDs to a
// batch of validated commands and returns the keys in input order. Timestamps
// are reserved as a contiguous range so ordering within a batch is preserved
// downstream.
func finalizeCommands(cmds []domain.Command) []string {
	keys := make([]string, len(cmds))
	if len(cmds) == 0 {
		return keys
	}
	first := nextTimestampRange(len(cmds))
	for i := range cmds {
		cmds[i].Timestamp = first + int64(i)
		if cmds[i].IdempotencyKey == "" {
			cmds[i].IdempotencyKey = strconv.FormatInt(cmds[i].Timestamp, 36)
		}
		cmds[i].ID = cmds[i].IdempotencyKey
		if cmds[i].EntityID == "" && cmds[i].EntityType == domain.EntityApplication && cmds[i].Type == domain.ApplicationCreated {
			cmds[i].EntityID = uuid.NewString()
		}
		keys[i] = cmds[i].IdempotencyKey
	}
	return keys
}

// filterFreshCommands records the keys with the deduper and drops commands
// whose key was already seen. A failing deduper is treated as allowing every
// command through rather than rejecting the batch.
func filterFreshCommands(ctx context.Context, c echo.Context, deduper Deduper, userID string, cmds []domain.Command, keys []string) (fresh []domain.Command, added []string) {
	if deduper == nil {
		return cmds, nil
	}
	results, err := deduper.AddMany(ctx, userID, keys)
	if err != nil || len(results) != len(cmds) {
		c.Logger().Warnf("idempotency check unavailable: %v", err)
		return cmds, nil
	}
	fresh = make([]domain.Command, 0, len(cmds))
	added = make([]string, 0, len(cmds))
	for i, isNew := range results {
		if isNew {
			fresh = append(fresh, cmds[i])
			added = append(added, keys[i])
		}
	}
	return fresh, added
}

// sendJob hands the job to the worker pool, falling back to an inline
// enqueue when the buffer is saturated or the pool is not running. Keys
// recorded with the deduper are rolled back when the inline path fails.
func sendJob(c echo.Context, store Storage, deduper Deduper, job enqueueJob) error {
	if tryEnqueueJob(job) {
		return nil
	}

	if globalLog != nil {
		globalLog.Warn("enqueue buffer saturated; processing inline")
	}

	timeout := enqueueTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	enqueueCtx, cancel := context.WithTimeout(bg, timeout)
	enqueueErr := store.EnqueueCommands(enqueueCtx, job.userID, job.cmds)
	cancel()

	if enqueueErr != nil {
		if deduper != nil {
			for _, k := range job.added {
				if rerr := deduper.Remove(bg, job.userID, k); rerr != nil {
					c.Logger().Errorf("dedupe rollback failed, err: %v, key: %s", rerr, k)
				}
			}
		}
		c.Logger().Errorf("enqueue inline failed: %v", enqueueErr)
		return enqueueErr
	}
	return nil
}

func postCommands(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		cmds := make([]domain.Command, 0, 4)
		if err := dec.Decode(&cmds); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if len(cmds) == 0 {
			return c.String(http.StatusBadRequest, "empty command list")
		}

		for i := range cmds {
			if err := validateCommand(cmds[i]); err != nil {
				return c.JSON(http.StatusUnprocessableEntity, postCommandResponse{Error: err.Error()})
			}
		}

		keys := finalizeCommands(cmds)
		fresh, added := filterFreshCommands(ctx, c, deduper, userID, cmds, keys)
		if len(fresh) == 0 {
			// every command in the batch was a replay
			return c.JSON(http.StatusAccepted, postCommandResponse{IdempotencyKeys: keys})
		}

		job := enqueueJob{
			userID: userID,
			cmds:   fresh,
			added:  added,
		}
		if err := sendJob(c, store, deduper, job); err != nil {
			return c.String(http.StatusInternalServerError, "failed to enqueue commands")
		}
		return c.JSON(http.StatusAccepted, postCommandResponse{IdempotencyKeys: keys})
	}
}

func moveApplication(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")

		lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req moveRequest
		if err := dec.Decode(&req); err != nil || req.Target == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		apps, err := store.FetchAllApplications(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		var current *domain.Application
		for i := range apps {
			if apps[i].ID == id {
				current = &apps[i]
				break
			}
		}
		if current == nil {
			// Stale id: the application vanished between the client's fetch
			// and the drop. Treat it like a self-drop rather than an error.
			return c.JSON(http.StatusOK, moveResponse{Moved: false})
		}

		status, ok := kanban.ResolveDropTarget(apps, req.Target)
		if !ok {
			return c.String(http.StatusUnprocessableEntity, "unresolvable drop target")
		}
		if status == current.Status {
			return c.JSON(http.StatusOK, moveResponse{Moved: false, Status: string(status)})
		}

		data, err := sonic.Marshal(domain.StatusChangedData{Status: string(status)})
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		cmds := []domain.Command{{
			EntityType: domain.EntityApplication,
			EntityID:   id,
			Type:       domain.StatusChanged,
			Data:       data,
		}}
		keys := finalizeCommands(cmds)
		fresh, added := filterFreshCommands(ctx, c, deduper, userID, cmds, keys)
		if len(fresh) > 0 {
			job := enqueueJob{userID: userID, cmds: fresh, added: added}
			if err := sendJob(c, store, deduper, job); err != nil {
				return c.String(http.StatusInternalServerError, "failed to enqueue commands")
			}
		}
		return c.JSON(http.StatusAccepted, moveResponse{Moved: true, Status: string(status), IdempotencyKey: keys[0]})
	}
}
