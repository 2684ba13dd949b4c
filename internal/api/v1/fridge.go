package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craft-brew/queue-ingest/internal/cache"
	httperr "github.com/craft-brew/queue-ingest/internal/core/errors"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

const (
	defaultRollupLimit = 30
	maxRollupLimit     = 365
)

// FridgeResponse is the combined dashboard read: live status, rolling 24h
// averages and the active batch, all served from the cache.
type FridgeResponse struct {
	Online  bool        `json:"online"`
	Status  *StatusView `json:"status"`
	Average AverageView `json:"average_24h"`
	Batch   *BatchView  `json:"batch"`
}

// StatusView mirrors the live status record.
type StatusView struct {
	Temp      *float64 `json:"temp"`
	Humidity  *float64 `json:"humidity"`
	Power     int      `json:"power"`
	Target    *float64 `json:"target"`
	UpdatedAt int64    `json:"updated_at"`
}

// AverageView is the rolling 24h mean.
type AverageView struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Count    int64    `json:"count"`
}

// BatchView is the active batch snapshot.
type BatchView struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	FermentationStart *time.Time `json:"fermentation_start"`
	FermentationEnd   *time.Time `json:"fermentation_end"`
	AgingStart        *time.Time `json:"aging_start"`
	AgingEnd          *time.Time `json:"aging_end"`
}

// HandleGetFridge handles GET /v1/fridge
func (s *Service) HandleGetFridge(c *gin.Context) {
	ctx := c.Request.Context()

	status, err := s.cache.GetStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load fridge status",
			Details:   err.Error(),
		})
		return
	}

	avg, err := s.cache.GetAverage24h(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load rolling averages",
			Details:   err.Error(),
		})
		return
	}

	batch, err := s.cache.GetActiveBatch(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load active batch",
			Details:   err.Error(),
		})
		return
	}

	resp := FridgeResponse{
		Online:  status != nil,
		Average: AverageView{Temp: avg.Temp, Humidity: avg.Humidity, Count: avg.Count},
	}
	if status != nil {
		resp.Status = &StatusView{
			Temp:      status.Temp,
			Humidity:  status.Humidity,
			Power:     status.Power,
			Target:    status.Target,
			UpdatedAt: status.UpdatedAt,
		}
	}
	if batch != nil {
		resp.Batch = batchView(*batch)
	}

	c.JSON(http.StatusOK, resp)
}

// HandleActivateBatch handles PUT /v1/fridge/batch
// The durable batch row is authoritative; activation copies it into the cache.
func (s *Service) HandleActivateBatch(c *gin.Context) {
	var req struct {
		BatchID int64 `json:"batch_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	batch, err := s.batches.GetBatch(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, storage.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpBatchNotFoundError,
				Message:   "Batch not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load batch",
			Details:   err.Error(),
		})
		return
	}

	snapshot := cache.ActiveBatch{
		ID:                batch.ID,
		Name:              batch.Name,
		Type:              batch.Type,
		FermentationStart: batch.FermentationStart,
		FermentationEnd:   batch.FermentationEnd,
		AgingStart:        batch.AgingStart,
		AgingEnd:          batch.AgingEnd,
	}
	if err := s.cache.SetActiveBatch(ctx, snapshot); err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to activate batch",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch": batchView(snapshot)})
}

// HandleClearBatch handles DELETE /v1/fridge/batch
// Only the cache snapshot is cleared; the durable row is untouched.
func (s *Service) HandleClearBatch(c *gin.Context) {
	if err := s.cache.ClearActiveBatch(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to clear active batch",
			Details:   err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleListRollups handles GET /v1/fridge/rollups?limit=N
func (s *Service) HandleListRollups(c *gin.Context) {
	limit := defaultRollupLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRollupLimit {
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidJsonError,
				Message:   "Invalid limit parameter",
			})
			return
		}
		limit = parsed
	}

	rollups, err := s.rollups.ListRollups(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list rollups",
			Details:   err.Error(),
		})
		return
	}

	type rollupView struct {
		Date            string `json:"date"`
		AvgTemp         string `json:"avg_temp"`
		MinTemp         string `json:"min_temp"`
		MaxTemp         string `json:"max_temp"`
		AvgHumidity     string `json:"avg_humidity"`
		MinHumidity     string `json:"min_humidity"`
		MaxHumidity     string `json:"max_humidity"`
		AvgPeltierPower int    `json:"avg_peltier_power"`
	}
	views := make([]rollupView, 0, len(rollups))
	for _, r := range rollups {
		views = append(views, rollupView{
			Date:            r.Date,
			AvgTemp:         r.AvgTemp.String(),
			MinTemp:         r.MinTemp.String(),
			MaxTemp:         r.MaxTemp.String(),
			AvgHumidity:     r.AvgHumidity.String(),
			MinHumidity:     r.MinHumidity.String(),
			MaxHumidity:     r.MaxHumidity.String(),
			AvgPeltierPower: r.AvgPeltierPower,
		})
	}

	c.JSON(http.StatusOK, gin.H{"rollups": views})
}

func batchView(b cache.ActiveBatch) *BatchView {
	return &BatchView{
		ID:                b.ID,
		Name:              b.Name,
		Type:              b.Type,
		FermentationStart: b.FermentationStart,
		FermentationEnd:   b.FermentationEnd,
		AgingStart:        b.AgingStart,
		AgingEnd:          b.AgingEnd,
	}
}
