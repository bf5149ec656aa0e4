package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports liveness and runtime status.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Uptime     string `json:"uptime"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`

	DBTotalConns  int32 `json:"db_total_conns"`
	DBIdleConns   int32 `json:"db_idle_conns"`
	QueueAutosave int64 `json:"queue_autosave"`
	RedisKeys     int64 `json:"redis_keys"`
}

// Health godoc
// GET /health
// Pings PostgreSQL and Redis. Returns 503 when either is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"postgres": "ok", "redis": "ok"}
	healthy := true

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL health check failed")
		checks["postgres"] = "down"
		healthy = false
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		checks["redis"] = "down"
		healthy = false
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Status godoc
// GET /api/v1/admin/system/status
// Returns Go runtime figures, pool usage and the autosave backlog.
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := systemStatus{
		Uptime:     formatDuration(time.Since(h.startTime)),
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
	}

	stat := h.pool.Stat()
	s.DBTotalConns = stat.TotalConns()
	s.DBIdleConns = stat.IdleConns()

	ctx := c.Request.Context()
	pipe := h.rdb.Pipeline()
	queueCmd := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	sizeCmd := pipe.DBSize(ctx)
	if _, err := pipe.Exec(ctx); err == nil {
		s.QueueAutosave, _ = queueCmd.Result()
		s.RedisKeys, _ = sizeCmd.Result()
	} else {
		h.log.Warn().Err(err).Msg("Failed to read Redis figures")
	}

	response.Success(c, http.StatusOK, s)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
