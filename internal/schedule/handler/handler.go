package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/archive"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/history"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/obligation/repository"
	"github.com/personalfinance/finance/backend/go-scheduler/internal/schedule"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/logger"
	"github.com/personalfinance/finance/backend/go-scheduler/pkg/middleware"
	"github.com/shopspring/decimal"
)

const (
	BasePath = "/api/scheduled-obligations"
	// TierHeader names the storage tier that served the request.
	TierHeader = "X-Storage-Tier"
)

// Exporter archives an owner's snapshot and reads it back. A nil Exporter
// disables the /export routes.
type Exporter interface {
	Export(ctx context.Context, ownerID string) (archive.Receipt, error)
	Load(ctx context.Context, key string) (archive.Snapshot, error)
}

type createRequest struct {
	Name        string          `json:"name" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category" binding:"required"`
	Frequency   string          `json:"frequency" binding:"required"`
	NextDueDate obligation.Date `json:"nextDueDate"`
	IsActive    *bool           `json:"isActive,omitempty"`
}

type updateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Frequency   *string          `json:"frequency,omitempty"`
	NextDueDate *obligation.Date `json:"nextDueDate,omitempty"`
	IsActive    *bool            `json:"isActive,omitempty"`
}

type executeRequest struct {
	ScheduledDate *obligation.Date `json:"scheduledDate,omitempty"`
}

func (r createRequest) draft() (obligation.Draft, error) {
	cat, err := obligation.ParseCategory(r.Category)
	if err != nil {
		return obligation.Draft{}, err
	}
	freq, err := obligation.ParseFrequency(r.Frequency)
	if err != nil {
		return obligation.Draft{}, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return obligation.Draft{
		Name:        r.Name,
		Amount:      r.Amount,
		Category:    cat,
		Frequency:   freq,
		NextDueDate: r.NextDueDate,
		IsActive:    active,
	}, nil
}

func (r updateRequest) patch() (obligation.Patch, error) {
	p := obligation.Patch{
		Name:        r.Name,
		Amount:      r.Amount,
		NextDueDate: r.NextDueDate,
		IsActive:    r.IsActive,
	}
	if r.Category != nil {
		cat, err := obligation.ParseCategory(*r.Category)
		if err != nil {
			return p, err
		}
		p.Category = &cat
	}
	if r.Frequency != nil {
		freq, err := obligation.ParseFrequency(*r.Frequency)
		if err != nil {
			return p, err
		}
		p.Frequency = &freq
	}
	return p, nil
}

// statusOf maps store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, obligation.ErrNotFound), errors.Is(err, archive.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, obligation.ErrValidation), errors.Is(err, obligation.ErrInvalidFrequency):
		return http.StatusBadRequest
	case errors.Is(err, obligation.ErrStaleCycle):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", logger.Fields{"path": c.FullPath(), "owner": middleware.Owner(c), "err": err})
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// RegisterRoutes mounts the scheduled-obligation API on r. Routes expect
// middleware.AuthMiddleware (or anything setting middleware.OwnerKey) ahead
// of them.
func RegisterRoutes(r gin.IRouter, store *schedule.Store, exp Exporter) {
	g := r.Group(BasePath)

	// owner resolves the caller and tags the response with the serving tier
	// once the handler is done with the store.
	owner := func(c *gin.Context) (string, bool) {
		id := middleware.Owner(c)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return "", false
		}
		return id, true
	}
	respond := func(c *gin.Context, ownerID string, status int, body interface{}) {
		if tier := store.Tier(ownerID); tier != repository.TierNone {
			c.Header(TierHeader, string(tier))
		}
		if body == nil {
			c.Status(status)
			return
		}
		c.JSON(status, body)
	}
	days := func(c *gin.Context, def int) (int, bool) {
		raw := c.Query("days")
		if raw == "" {
			return def, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return 0, false
		}
		return n, true
	}
	asOf := func(c *gin.Context) (obligation.Date, bool) {
		raw := c.Query("asOf")
		if raw == "" {
			return store.Today(), true
		}
		d, err := obligation.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return obligation.Date{}, false
		}
		return d, true
	}

	// filter reads obligationId, from and to (YYYY-MM-DD) from the query.
	filter := func(c *gin.Context) (history.Filter, bool) {
		f := history.Filter{ObligationID: c.Query("obligationId")}
		for _, b := range []struct {
			name string
			dst  *obligation.Date
		}{{"from", &f.From}, {"to", &f.To}} {
			raw := c.Query(b.name)
			if raw == "" {
				continue
			}
			d, err := obligation.ParseDate(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": b.name + ": " + err.Error()})
				return history.Filter{}, false
			}
			*b.dst = d
		}
		return f, true
	}

	g.GET("", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		list, err := store.List(c.Request.Context(), o)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, list)
	})

	g.POST("", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := req.draft()
		if err != nil {
			writeError(c, err)
			return
		}
		ob, err := store.Create(c.Request.Context(), o, d)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusCreated, ob)
	})

	g.GET("/upcoming", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		n, ok := days(c, store.UpcomingDays())
		if !ok {
			return
		}
		at, ok := asOf(c)
		if !ok {
			return
		}
		list, err := store.Upcoming(c.Request.Context(), o, n, at)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, list)
	})

	g.GET("/history", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		f, ok := filter(c)
		if !ok {
			return
		}
		occs, err := store.History(c.Request.Context(), o, f)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, occs)
	})

	g.GET("/history/summary", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		f, ok := filter(c)
		if !ok {
			return
		}
		sum, err := store.Paid(c.Request.Context(), o, f)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, sum)
	})

	g.GET("/analytics", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		at, ok := asOf(c)
		if !ok {
			return
		}
		rep, err := store.Report(c.Request.Context(), o, at)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, rep)
	})

	g.GET("/calendar", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		n, ok := days(c, 30)
		if !ok {
			return
		}
		at, ok := asOf(c)
		if !ok {
			return
		}
		entries, err := store.Calendar(c.Request.Context(), o, n, at)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, entries)
	})

	g.POST("/export", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		if exp == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "export storage not configured"})
			return
		}
		rec, err := exp.Export(c.Request.Context(), o)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusCreated, rec)
	})

	g.GET("/export", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		if exp == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "export storage not configured"})
			return
		}
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
			return
		}
		// other owners' keys look missing
		if !archive.OwnsKey(o, key) {
			writeError(c, archive.ErrSnapshotNotFound)
			return
		}
		snap, err := exp.Load(c.Request.Context(), key)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	g.GET("/:id", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		ob, err := store.Get(c.Request.Context(), o, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, ob)
	})

	update := func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p, err := req.patch()
		if err != nil {
			writeError(c, err)
			return
		}
		ob, err := store.Update(c.Request.Context(), o, c.Param("id"), p)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, ob)
	}
	g.PATCH("/:id", update)
	g.PUT("/:id", update)

	g.DELETE("/:id", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		if err := store.Delete(c.Request.Context(), o, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusNoContent, nil)
	})

	g.PATCH("/:id/toggle", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		ob, err := store.ToggleActive(c.Request.Context(), o, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, ob)
	})

	g.POST("/:id/execute", func(c *gin.Context) {
		o, ok := owner(c)
		if !ok {
			return
		}
		var req executeRequest
		// the body is optional
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		occ, err := store.Execute(c.Request.Context(), o, c.Param("id"), schedule.ExecuteOptions{ExpectedDue: req.ScheduledDate})
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, o, http.StatusOK, occ)
	})
}
