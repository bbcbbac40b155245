package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contentkit/importer/internal/importer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *App) registerRoutes() {
	a.router.GET("/health", a.handleHealth)

	v1 := a.router.Group("/v1")
	{
		v1.POST("/import", a.handleImport)
		v1.GET("/import/:external_id/errors", a.handleImportErrors)
		v1.GET("/records/:external_id", a.handleResolve)
		v1.DELETE("/records/:external_id", a.handleDelete)
	}
}

func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type importRequest struct {
	ExternalID string           `json:"external_id" binding:"required"`
	Payload    importer.Payload `json:"payload"`
}

// handleImport runs one import unit start-to-finish. Invalid payloads come
// back as 422 with the full per-scope error report.
func (a *App) handleImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	rec, err := a.importer.NewRecord(ctx, req.ExternalID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.importer.Apply(rec, req.Payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	id, err := a.importer.Save(ctx, rec)
	if err != nil {
		var saveErr *importer.SaveError
		if errors.As(err, &saveErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": saveErr.Error(),
				"errors":  saveErr.Errors,
			})
			return
		}
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"external_id": rec.ExternalID(),
		"id":          id,
		"created":     !rec.Exists(),
	})
}

// handleImportErrors reports the error bag of the most recent import attempt
// for an external id. A clean attempt comes back with an empty errors object.
func (a *App) handleImportErrors(c *gin.Context) {
	externalID := c.Param("external_id")
	entry, err := a.importer.LatestAttempt(c.Request.Context(), externalID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no import attempts for external id"})
		return
	}

	errReport := json.RawMessage("{}")
	if entry.Errors != "" {
		errReport = json.RawMessage(entry.Errors)
	}
	c.JSON(http.StatusOK, gin.H{
		"external_id": entry.ExternalID,
		"status":      entry.Status,
		"timestamp":   entry.Timestamp,
		"errors":      errReport,
	})
}

// handleResolve maps an external id to its internal id.
func (a *App) handleResolve(c *gin.Context) {
	externalID := c.Param("external_id")
	id, found, err := a.importer.Resolver().Resolve(c.Request.Context(), externalID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "no record for external id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"external_id": externalID, "id": id})
}

// handleDelete removes the record mapped to an external id. force=true
// deletes outright, otherwise the record is trashed.
func (a *App) handleDelete(c *gin.Context) {
	externalID := c.Param("external_id")
	force := c.Query("force") == "true"

	found, err := a.importer.DeleteByExternalID(c.Request.Context(), externalID, force)
	if err != nil {
		a.fail(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "no record for external id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "force": force})
}

func (a *App) fail(c *gin.Context, err error) {
	a.logger.Error("request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}
