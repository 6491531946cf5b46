package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// MimicTables are the MIMIC-III tables the service reads.
var MimicTables = []string{
	"admissions", "patients", "diagnoses_icd", "d_icd_diagnoses",
	"procedures_icd", "d_icd_procedures", "noteevents",
}

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

type Health struct {
	Status        string    `json:"status"`
	Schema        string    `json:"schema"`
	Error         string    `json:"error,omitempty"`
	MissingTables []string  `json:"missing_tables,omitempty"`
	Pool          PoolStats `json:"pool"`
}

// MissingTables returns the MIMIC tables not visible on the search_path.
func MissingTables(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	var missing []string
	for _, t := range MimicTables {
		var found *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass($1)::text", t).Scan(&found); err != nil {
			return nil, err
		}
		if found == nil {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

// HealthHandler pings the database and checks that the MIMIC tables exist.
func HealthHandler(pool *pgxpool.Pool, schema string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := Health{Status: "healthy", Schema: schema}
		err := pool.Ping(ctx)
		if err == nil {
			h.MissingTables, err = MissingTables(ctx, pool)
		}
		h.Pool = GetPoolStats(pool)
		h.Status, h.Error = healthStatus(h.MissingTables, err)
		if h.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}

func healthStatus(missing []string, err error) (string, string) {
	switch {
	case err != nil:
		return "unhealthy", err.Error()
	case len(missing) > 0:
		return "degraded", "missing tables"
	default:
		return "healthy", ""
	}
}
