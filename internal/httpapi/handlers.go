package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/culldron/internal/db"
	"horse.fit/culldron/internal/globaltime"
	payloadschema "horse.fit/culldron/schema"
)

const (
	msgAlreadyParsed = "This URL has already been parsed."
	msgThemeNotFound = "Theme not found"
)

type ingestFeedRequest struct {
	FeedURL string `json:"feed_url"`
}

type ingestFeedResponse struct {
	Message  string         `json:"message"`
	Ingested int            `json:"ingested"`
	Skipped  int            `json:"skipped"`
	Total    int            `json:"total"`
	Reasons  map[string]int `json:"skip_reasons,omitempty"`
}

type articleResponse struct {
	Ingested   bool   `json:"ingested"`
	SkipReason string `json:"skip_reason,omitempty"`
	ThemeID    string `json:"theme_id,omitempty"`
	ThesisText string `json:"thesis_text,omitempty"`
	PostURL    string `json:"post_url"`
}

type themeDetail struct {
	ThemeID string          `json:"theme_id"`
	Count   int             `json:"count"`
	Items   []db.ThesisView `json:"items"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Stats != nil {
		if err := s.deps.Stats.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("database ping failed")
			return internalError(c, "Database unavailable")
		}
	}
	return success(c, map[string]any{
		"service":  "culldron",
		"database": "ok",
		"time":     globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	now := globaltime.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.deps.Stats.QueryStats(c.Request().Context(), dayStart)
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleThemes(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	ctx := c.Request().Context()
	total, err := s.deps.Themes.CountThemes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count themes failed")
		return internalError(c, "Failed to load themes")
	}

	items, err := s.deps.Themes.ListThemes(ctx, db.ThemeListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("list themes failed")
		return internalError(c, "Failed to load themes")
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
	})
}

func (s *Server) handleThemeDetail(c echo.Context) error {
	themeID := strings.TrimSpace(c.Param("theme_id"))
	if themeID == "" {
		return failValidation(c, map[string]string{"theme_id": "is required"})
	}

	items, err := s.deps.Themes.ThemeRecords(c.Request().Context(), themeID)
	if err != nil {
		s.logger.Error().Err(err).Str("theme_id", themeID).Msg("query theme records failed")
		return internalError(c, "Failed to load theme")
	}
	if len(items) == 0 {
		return failNotFound(c, msgThemeNotFound)
	}

	return success(c, themeDetail{ThemeID: themeID, Count: len(items), Items: items})
}

func (s *Server) handleIngestFeed(c echo.Context) error {
	if s.deps.Feeds == nil {
		return internalError(c, "Feed ingestion is not configured")
	}

	var req ingestFeedRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	feedURL := strings.TrimSpace(req.FeedURL)
	if feedURL == "" {
		return failValidation(c, map[string]string{"feed_url": "is required"})
	}

	result, err := s.deps.Feeds.IngestFeed(c.Request().Context(), feedURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("feed_url", feedURL).Msg("feed ingestion failed")
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	message := fmt.Sprintf("Feed ingested successfully. New posts ingested: %d, skipped: %d", result.Ingested, result.Skipped)
	if result.AllSkipped() {
		message = msgAlreadyParsed
	}

	var reasons map[string]int
	if len(result.Reasons) > 0 {
		reasons = make(map[string]int, len(result.Reasons))
		for reason, count := range result.Reasons {
			reasons[string(reason)] = count
		}
	}

	return success(c, ingestFeedResponse{
		Message:  message,
		Ingested: result.Ingested,
		Skipped:  result.Skipped,
		Total:    result.Total,
		Reasons:  reasons,
	})
}

func (s *Server) handleIngestArticle(c echo.Context) error {
	if s.deps.Articles == nil {
		return internalError(c, "Article ingestion is not configured")
	}

	body, err := readBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	payload, err := payloadschema.ValidateArticlePayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	article := payload.Article()
	outcome, err := s.deps.Articles.IngestOne(c.Request().Context(), article)
	if err != nil {
		s.logger.Error().Err(err).Str("post_url", article.PostURL).Msg("article ingestion failed")
		return internalError(c, "Failed to ingest article")
	}

	resp := articleResponse{PostURL: article.PostURL}
	if outcome.Skipped() {
		resp.SkipReason = string(outcome.Reason)
		return success(c, resp)
	}
	resp.Ingested = true
	resp.ThemeID = outcome.Record.ThemeID
	resp.ThesisText = outcome.Record.ThesisText
	return successWithStatus(c, http.StatusCreated, resp)
}

func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
