package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/invobr/paysync/internal/pkg/jobqueue"
)

// HandleQueueStats reports job queue depth and per-status counters.
// GET /api/v1/queue/stats
func HandleQueueStats(c *fiber.Ctx) error {
	q := jobqueue.GetManager().GetQueue()
	if q == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queue not running"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := q.GetJobStats(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	pending, _ := q.GetQueueSize(ctx)
	processing, _ := q.GetProcessingSize(ctx)

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}
