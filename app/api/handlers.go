package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/tasks"
)

const digestLimit = 50

func NewHandler(configCache ConfigStore, sourceRepo database.SourceRepository,
	recordRepo database.RecordRepository, notificationRepo database.NotificationRepository,
	scheduler tasks.TaskSchedulerInterface, stats StatsProvider, channel feed.Channel) *Handler {
	return &Handler{
		sourceRepo:       sourceRepo,
		recordRepo:       recordRepo,
		notificationRepo: notificationRepo,
		generator:        feed.NewGenerator(),
		configCache:      configCache,
		scheduler:        scheduler,
		stats:            stats,
		channel:          channel,
	}
}

// GetDigest renders the newest accepted records as RSS.
func (h *Handler) GetDigest(c *gin.Context) {
	filter := database.RecordFilter{Limit: digestLimit}
	if featured, _ := strconv.ParseBool(c.Query("featured")); featured {
		filter.Featured = &featured
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	records, err := h.recordRepo.ListRecords(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_records", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	items := make([]feed.DigestItem, 0, len(records))
	for _, r := range records {
		items = append(items, digestItem(r))
	}

	channel := h.channel
	if filter.Featured != nil {
		channel.Title += " (featured)"
	}

	rss, err := h.generator.Run(channel, items)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.String(http.StatusOK, rss)
}

func digestItem(r database.Record) feed.DigestItem {
	guid := r.Link
	if guid == "" {
		guid = r.ItemKey
	}
	var published time.Time
	if r.PublishedMs > 0 {
		published = time.UnixMilli(r.PublishedMs).In(time.Local)
	}
	return feed.DigestItem{
		GUID:        guid,
		Title:       r.Title,
		Link:        r.Link,
		Summary:     r.Summary,
		Content:     r.Content,
		Source:      r.Source,
		PublishedAt: published,
		Categories:  r.Categories,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(ctx); err == nil {
		health["sources"] = sourceCount
	}
	if recordCount, err := h.recordRepo.GetRecordCount(ctx); err == nil {
		health["records"] = recordCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, ok := h.stats.LastStats()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"last_run": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"last_run": stats,
		"duration": stats.FinishedAt.Sub(stats.StartedAt).String(),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	ctx := c.Request.Context()
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))
	for _, feedConfig := range configs {
		info := map[string]interface{}{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"title":            feedConfig.Title,
			"enabled":          feedConfig.Settings.Enabled,
			"item_id_strategy": feedConfig.Settings.ItemIDStrategy,
			"extract_content":  feedConfig.Settings.ExtractContent,
			"filters":          len(feedConfig.Filters),
		}

		if src, err := h.sourceRepo.GetSource(ctx, feedConfig.Name); err == nil && src != nil {
			info["status"] = src.Status
			info["last_fetch_status"] = src.LastFetchStatus
			info["consecutive_fail_count"] = src.ConsecutiveFailCount
			info["last_fetch_ms"] = src.LastFetchMs
			info["last_item_key"] = src.LastItemKey
			info["last_item_pub_ms"] = src.LastItemPubMs
			info["failed_items"] = src.FailedItems
		}

		sources = append(sources, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIListRecords(c *gin.Context) {
	filter := database.RecordFilter{Source: c.Query("source")}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset parameter"})
			return
		}
		filter.Offset = offset
	}
	if v := c.Query("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid featured parameter"})
			return
		}
		filter.Featured = &featured
	}

	records, err := h.recordRepo.ListRecords(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"id":           r.ID,
			"item_key":     r.ItemKey,
			"source":       r.Source,
			"title":        r.Title,
			"link":         r.Link,
			"score":        r.Score,
			"categories":   r.Categories,
			"summary":      r.Summary,
			"published_ms": r.PublishedMs,
			"featured":     r.Featured,
			"created_at":   r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"records": out, "count": len(out)})
}

func (h *Handler) APIRun(c *gin.Context) {
	task, err := h.scheduler.EnqueueIngest()
	if errors.Is(err, tasks.ErrIngestPending) {
		c.JSON(http.StatusConflict, gin.H{"error": "An ingest run is already pending"})
		return
	}
	if err != nil {
		slog.Error("Error enqueueing ingest task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue ingest task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncTask := tasks.NewSyncSourceConfigTask(feedConfig, h.sourceRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and sync task enqueued",
		"source": gin.H{
			"name":    name,
			"url":     feedConfig.URL,
			"enabled": feedConfig.Settings.Enabled,
		},
		"tasks": []gin.H{
			{"id": syncTask.ID, "type": syncTask.Type},
		},
	})
}

func (h *Handler) APIListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	notifications, err := h.notificationRepo.ListNotifications(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_notifications", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, gin.H{
			"id":           n.ID,
			"event":        n.Event,
			"error_type":   n.ErrorType,
			"detail":       n.Detail,
			"notice":       n.Notice,
			"triggered_ms": n.TriggeredMs,
			"notified":     n.Notified,
		})
	}

	c.JSON(http.StatusOK, gin.H{"notifications": out, "count": len(out)})
}

func (h *Handler) APIAckNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}

	if err := h.notificationRepo.MarkNotified(c.Request.Context(), id); err != nil {
		slog.Error("Database error", "operation", "mark_notified", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}
