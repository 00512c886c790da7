package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/newsdesk/internal/content"
	"github.com/gogotex/newsdesk/internal/content/service"
	"github.com/gogotex/newsdesk/pkg/logger"
)

// RegisterContentRoutes mounts the content API on r. Callers are expected to
// put the auth middleware in front so the request context carries an actor.
func RegisterContentRoutes(r gin.IRouter, svc service.Service) {
	r.POST("/content", func(c *gin.Context) {
		var req struct {
			Title       string           `json:"title"`
			Description string           `json:"description"`
			ContentType string           `json:"contentType"`
			Tags        []string         `json:"tags"`
			Features    content.Features `json:"features"`
			Status      content.Status   `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := svc.CreateContent(c.Request.Context(), service.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			ContentType: req.ContentType,
			Tags:        req.Tags,
			Features:    req.Features,
			Status:      req.Status,
		})
		created(c, id, err)
	})

	r.POST("/content/events", func(c *gin.Context) {
		var req struct {
			Title       string                   `json:"title"`
			Description string                   `json:"description"`
			Start       time.Time                `json:"start"`
			End         *time.Time               `json:"end"`
			IsAllDay    bool                     `json:"isAllDay"`
			Location    *content.LocationFeature `json:"location"`
			Tags        []string                 `json:"tags"`
			ContentType string                   `json:"contentType"`
			Status      content.Status           `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := svc.CreateEvent(c.Request.Context(), service.EventInput{
			Title:       req.Title,
			Description: req.Description,
			Start:       req.Start,
			End:         req.End,
			IsAllDay:    req.IsAllDay,
			Location:    req.Location,
			Tags:        req.Tags,
			ContentType: req.ContentType,
			Status:      req.Status,
		})
		created(c, id, err)
	})

	r.POST("/content/tasks", func(c *gin.Context) {
		var req struct {
			Title       string         `json:"title"`
			Description string         `json:"description"`
			Category    string         `json:"category"`
			Qty         float64        `json:"qty"`
			Unit        string         `json:"unit"`
			TaskStatus  string         `json:"taskStatus"`
			Tags        []string       `json:"tags"`
			ContentType string         `json:"contentType"`
			Status      content.Status `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := svc.CreateTask(c.Request.Context(), service.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Qty:         req.Qty,
			Unit:        req.Unit,
			TaskStatus:  req.TaskStatus,
			Tags:        req.Tags,
			ContentType: req.ContentType,
			Status:      req.Status,
		})
		created(c, id, err)
	})

	r.POST("/content/locations", func(c *gin.Context) {
		var req struct {
			Title       string            `json:"title"`
			Description string            `json:"description"`
			Address     string            `json:"address"`
			Name        string            `json:"name"`
			Geo         *content.GeoPoint `json:"geo"`
			Tags        []string          `json:"tags"`
			ContentType string            `json:"contentType"`
			Status      content.Status    `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := svc.CreateLocationContent(c.Request.Context(), service.LocationInput{
			Title:       req.Title,
			Description: req.Description,
			Address:     req.Address,
			Name:        req.Name,
			Geo:         req.Geo,
			Tags:        req.Tags,
			ContentType: req.ContentType,
			Status:      req.Status,
		})
		created(c, id, err)
	})

	r.POST("/content/canva", func(c *gin.Context) {
		var req struct {
			Title       string         `json:"title"`
			Description string         `json:"description"`
			DesignID    string         `json:"designId"`
			EditURL     string         `json:"editUrl"`
			ExportURL   string         `json:"exportUrl"`
			Tags        []string       `json:"tags"`
			ContentType string         `json:"contentType"`
			Status      content.Status `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := svc.CreateCanvaContent(c.Request.Context(), service.CanvaInput{
			Title:       req.Title,
			Description: req.Description,
			DesignID:    req.DesignID,
			EditURL:     req.EditURL,
			ExportURL:   req.ExportURL,
			Tags:        req.Tags,
			ContentType: req.ContentType,
			Status:      req.Status,
		})
		created(c, id, err)
	})

	// validate is a dry run; it always answers 200 with the result.
	r.POST("/content/validate", func(c *gin.Context) {
		var req struct {
			Title       string           `json:"title"`
			Description string           `json:"description"`
			Features    content.Features `json:"features"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, svc.ValidateContentData(req.Title, req.Description, req.Features))
	})

	r.GET("/content", func(c *gin.Context) {
		f, ok := listFilter(c)
		if !ok {
			return
		}
		list, err := svc.ListContent(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.GET("/content/stream", func(c *gin.Context) {
		f, ok := listFilter(c)
		if !ok {
			return
		}
		stream(c, svc, f)
	})

	r.GET("/content/:id", func(c *gin.Context) {
		o, err := svc.GetContent(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	})

	r.PATCH("/content/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := c.Param("id")
		if err := svc.UpdateContentStatus(c.Request.Context(), id, content.Status(req.Status)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
	})

	r.PUT("/content/:id/tags", func(c *gin.Context) {
		var req struct {
			Tags []string `json:"tags"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id := c.Param("id")
		if err := svc.UpdateContentTags(c.Request.Context(), id, req.Tags); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	r.POST("/content/:id/newsletter-ready", func(c *gin.Context) { newsletterReady(c, svc, true) })
	r.DELETE("/content/:id/newsletter-ready", func(c *gin.Context) { newsletterReady(c, svc, false) })

	r.DELETE("/content/:id", func(c *gin.Context) {
		if err := svc.HardDelete(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/issues/eligible", func(c *gin.Context) {
		f, ok := eligibilityFilter(c)
		if !ok {
			return
		}
		res, err := svc.EligibleForIssue(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		failed := make([]string, 0, len(res.Failures))
		for _, sf := range res.Failures {
			failed = append(failed, sf.Source)
		}
		c.JSON(http.StatusOK, gin.H{"items": res.Items, "count": len(res.Items), "partial": len(failed) > 0, "failedSources": failed})
	})

	r.POST("/issues/:issueId/export", func(c *gin.Context) {
		f, ok := eligibilityFilter(c)
		if !ok {
			return
		}
		out, err := svc.ExportIssue(c.Request.Context(), c.Param("issueId"), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	})
}

func created(c *gin.Context, id string, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func newsletterReady(c *gin.Context, svc service.Service, ready bool) {
	id := c.Param("id")
	if err := svc.SetNewsletterReady(c.Request.Context(), id, ready); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "newsletterReady": ready})
}

func listFilter(c *gin.Context) (service.ListFilter, bool) {
	f := service.ListFilter{
		Status:   content.Status(c.Query("status")),
		Tag:      c.Query("tag"),
		AuthorID: c.Query("author"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

func eligibilityFilter(c *gin.Context) (*service.EligibilityFilter, bool) {
	ct := c.Query("contentType")
	tags := c.QueryArray("tag")
	after := c.Query("createdAfter")
	if ct == "" && len(tags) == 0 && after == "" {
		return nil, true
	}
	f := &service.EligibilityFilter{ContentType: ct, Tags: tags}
	if after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "createdAfter must be an RFC 3339 timestamp"})
			return nil, false
		}
		f.CreatedAfter = &t
	}
	return f, true
}

// stream pushes the full result set as a server-sent event every time it
// changes, until the client goes away or the subscription fails.
func stream(c *gin.Context, svc service.Service, f service.ListFilter) {
	ctx := c.Request.Context()
	updates := make(chan []*content.Object, 1)
	failed := make(chan error, 1)

	cancel, err := svc.Subscribe(ctx, f, func(items []*content.Object, err error) {
		if err != nil {
			select {
			case failed <- err:
			default:
			}
			return
		}
		// keep only the newest snapshot
		select {
		case <-updates:
		default:
		}
		updates <- items
	})
	if err != nil {
		writeError(c, err)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	for {
		select {
		case <-ctx.Done():
			return
		case items := <-updates:
			c.SSEvent("snapshot", items)
			c.Writer.Flush()
		case err := <-failed:
			logger.Warnf("content stream: %v", err)
			c.SSEvent("error", gin.H{"error": err.Error()})
			c.Writer.Flush()
			return
		}
	}
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *content.ValidationError
	var aerr *content.AuthError
	var perr *content.PersistenceError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verr.Errors})
	case errors.As(err, &aerr):
		if errors.Is(err, content.ErrInsufficientRole) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, content.ErrInvalidTransition), errors.Is(err, content.ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExportDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.Is(err, content.ErrAllSourcesFailed):
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no eligibility source could be read"})
	case errors.As(err, &perr):
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		switch perr.Kind {
		case content.KindUnavailable:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content store unavailable"})
		case content.KindPermissionDenied:
			c.JSON(http.StatusForbidden, gin.H{"error": "content store denied access"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "content store error"})
		}
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
