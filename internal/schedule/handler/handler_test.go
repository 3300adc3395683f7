package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/archive"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/history"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation/repository"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/schedule"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/middleware"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, exp Exporter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	local := repository.NewCacheRepo(repository.NewMemoryKV(), "")
	store := schedule.NewStore(repository.NewFallback(nil, local),
		schedule.WithClock(func() time.Time { return now }))

	g := gin.New()
	// stands in for AuthMiddleware
	g.Use(func(c *gin.Context) {
		if o := c.GetHeader("X-Test-Owner"); o != "" {
			c.Set(middleware.OwnerKey, o)
		}
		c.Next()
	})
	RegisterRoutes(g, store, exp)
	return g
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-Owner", "user-1")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

const streamingJSON = `{"name":"Streaming Service","amount":15,"category":"subscriptions","frequency":"weekly","nextDueDate":"2025-04-03"}`

func create(t *testing.T, g *gin.Engine, body string) obligation.Obligation {
	t.Helper()
	w := do(g, http.MethodPost, BasePath, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ob obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ob))
	return ob
}

func TestHandler_CRUD(t *testing.T) {
	g := newRouter(t, nil)

	ob := create(t, g, streamingJSON)
	require.NotEmpty(t, ob.ID)
	require.Equal(t, obligation.CategorySubscriptions, ob.Category)
	require.True(t, ob.IsActive)
	require.Equal(t, "user-1", ob.OwnerID)

	w := do(g, http.MethodGet, BasePath+"/"+ob.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "local", w.Header().Get(TierHeader))

	w = do(g, http.MethodPatch, BasePath+"/"+ob.ID, `{"amount":"17.99","name":"Streaming+"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Equal(t, "17.99", updated.Amount.String())
	require.Equal(t, "Streaming+", updated.Name)
	require.Equal(t, obligation.Weekly, updated.Frequency)

	w = do(g, http.MethodPatch, BasePath+"/"+ob.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	var toggled obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &toggled))
	require.False(t, toggled.IsActive)

	w = do(g, http.MethodGet, BasePath, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = do(g, http.MethodDelete, BasePath+"/"+ob.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(g, http.MethodGet, BasePath+"/"+ob.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_CreateValidation(t *testing.T) {
	g := newRouter(t, nil)

	cases := map[string]string{
		"missing name":     `{"amount":15,"category":"Other","frequency":"weekly","nextDueDate":"2025-04-03"}`,
		"zero amount":      `{"name":"x","amount":0,"category":"Other","frequency":"weekly","nextDueDate":"2025-04-03"}`,
		"unknown category": `{"name":"x","amount":1,"category":"Pets","frequency":"weekly","nextDueDate":"2025-04-03"}`,
		"unknown cadence":  `{"name":"x","amount":1,"category":"Other","frequency":"hourly","nextDueDate":"2025-04-03"}`,
		"bad date":         `{"name":"x","amount":1,"category":"Other","frequency":"weekly","nextDueDate":"03/04/2025"}`,
		"missing date":     `{"name":"x","amount":1,"category":"Other","frequency":"weekly"}`,
	}
	for name, body := range cases {
		w := do(g, http.MethodPost, BasePath, body)
		require.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestHandler_ExecuteAndHistory(t *testing.T) {
	g := newRouter(t, nil)
	ob := create(t, g, streamingJSON)

	w := do(g, http.MethodPost, BasePath+"/"+ob.ID+"/execute", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var occ obligation.Occurrence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &occ))
	require.Equal(t, "2025-04-03", occ.ScheduledDate.String())
	require.Equal(t, "15", occ.Amount.String())

	// the same cycle again is a conflict when the caller names it
	w = do(g, http.MethodPost, BasePath+"/"+ob.ID+"/execute", `{"scheduledDate":"2025-04-03"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(g, http.MethodPost, BasePath+"/"+ob.ID+"/execute", `{"scheduledDate":"2025-04-10"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(g, http.MethodGet, BasePath+"/history?obligationId="+ob.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist []obligation.Occurrence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist, 2)

	w = do(g, http.MethodGet, BasePath+"/"+ob.ID, "")
	var got obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "2025-04-17", got.NextDueDate.String())

	w = do(g, http.MethodPost, BasePath+"/missing/execute", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpcomingAnalyticsCalendar(t *testing.T) {
	g := newRouter(t, nil)
	create(t, g, streamingJSON)
	create(t, g, `{"name":"Insurance","amount":"120","category":"Insurance","frequency":"yearly","nextDueDate":"2025-06-01"}`)

	w := do(g, http.MethodGet, BasePath+"/upcoming", "")
	require.Equal(t, http.StatusOK, w.Code)
	var up []obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	require.Len(t, up, 1)
	require.Equal(t, "Streaming Service", up[0].Name)

	w = do(g, http.MethodGet, BasePath+"/upcoming?days=90", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	require.Len(t, up, 2)

	w = do(g, http.MethodGet, BasePath+"/upcoming?days=soon", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodGet, BasePath+"/analytics?asOf=2025-04-03", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rep map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Equal(t, "74.95", rep["totalMonthly"])
	require.Equal(t, float64(2), rep["activeCount"])

	w = do(g, http.MethodGet, BasePath+"/analytics?asOf=tomorrow", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodGet, BasePath+"/calendar?days=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cal []schedule.CalendarEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cal))
	require.Len(t, cal, 2)
	require.Equal(t, "2025-04-10", cal[1].Date.String())
}

func TestHandler_RequiresOwner(t *testing.T) {
	g := newRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, BasePath, nil)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_OwnersAreIsolated(t *testing.T) {
	g := newRouter(t, nil)
	ob := create(t, g, streamingJSON)

	req := httptest.NewRequest(http.MethodGet, BasePath+"/"+ob.ID, nil)
	req.Header.Set("X-Test-Owner", "user-2")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_PutUpdatesLikePatch(t *testing.T) {
	g := newRouter(t, nil)
	ob := create(t, g, streamingJSON)

	w := do(g, http.MethodPut, BasePath+"/"+ob.ID, `{"frequency":"monthly"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got obligation.Obligation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, obligation.Monthly, got.Frequency)
	require.Equal(t, "Streaming Service", got.Name)

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		w = do(g, method, BasePath+"/"+ob.ID, `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code, method)
		require.Contains(t, w.Body.String(), "no fields to update")
	}
	w = do(g, http.MethodPut, BasePath+"/missing", `{"name":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HistoryRangeAndSummary(t *testing.T) {
	g := newRouter(t, nil)
	ob := create(t, g, streamingJSON)
	for i := 0; i < 2; i++ {
		w := do(g, http.MethodPost, BasePath+"/"+ob.ID+"/execute", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	var hist []obligation.Occurrence
	w := do(g, http.MethodGet, BasePath+"/history?from=2025-04-03&to=2025-04-03", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist, 2)

	w = do(g, http.MethodGet, BasePath+"/history?to=2025-04-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Empty(t, hist)

	w = do(g, http.MethodGet, BasePath+"/history?from=April", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = do(g, http.MethodGet, BasePath+"/history?from=2025-04-05&to=2025-04-01", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodGet, BasePath+"/history/summary?obligationId="+ob.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum history.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	require.Equal(t, 2, sum.Count)
	require.Equal(t, "30.00", sum.Total)
	require.Equal(t, []history.CategoryPaid{{Category: obligation.CategorySubscriptions, Total: "30.00"}}, sum.ByCategory)
}

type stubExporter struct {
	err   error
	snaps map[string]archive.Snapshot
}

func (s stubExporter) Export(ctx context.Context, ownerID string) (archive.Receipt, error) {
	if s.err != nil {
		return archive.Receipt{}, s.err
	}
	return archive.Receipt{Key: "exports/" + ownerID + "/x.json", URL: "http://minio/x"}, nil
}

func (s stubExporter) Load(ctx context.Context, key string) (archive.Snapshot, error) {
	snap, ok := s.snaps[key]
	if !ok {
		return archive.Snapshot{}, archive.ErrSnapshotNotFound
	}
	return snap, nil
}

func TestHandler_Export(t *testing.T) {
	w := do(newRouter(t, nil), http.MethodPost, BasePath+"/export", "")
	require.Equal(t, http.StatusNotImplemented, w.Code)

	w = do(newRouter(t, stubExporter{}), http.MethodPost, BasePath+"/export", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var rec archive.Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, "exports/user-1/x.json", rec.Key)

	w = do(newRouter(t, stubExporter{err: errors.New("s3 down")}), http.MethodPost, BasePath+"/export", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandler_LoadExport(t *testing.T) {
	w := do(newRouter(t, nil), http.MethodGet, BasePath+"/export?key=exports/user-1/x.json", "")
	require.Equal(t, http.StatusNotImplemented, w.Code)

	exp := stubExporter{snaps: map[string]archive.Snapshot{
		"exports/user-1/x.json": {OwnerID: "user-1"},
		"exports/user-2/y.json": {OwnerID: "user-2"},
	}}
	g := newRouter(t, exp)

	w = do(g, http.MethodGet, BasePath+"/export?key=exports/user-1/x.json", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap archive.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, "user-1", snap.OwnerID)

	w = do(g, http.MethodGet, BasePath+"/export?key=exports/user-2/y.json", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	w = do(g, http.MethodGet, BasePath+"/export?key=exports/user-1/gone.json", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	w = do(g, http.MethodGet, BasePath+"/export", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusNotFound, statusOf(obligation.ErrNotFound))
	require.Equal(t, http.StatusNotFound, statusOf(archive.ErrSnapshotNotFound))
	require.Equal(t, http.StatusBadRequest, statusOf(&obligation.ValidationError{Field: "name", Reason: "x"}))
	require.Equal(t, http.StatusConflict, statusOf(obligation.ErrStaleCycle))
	require.Equal(t, http.StatusServiceUnavailable, statusOf(repository.ErrUnavailable))
	require.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}
