package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"user-api/internal/storage"
)

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func (h *Handler) exportUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	export, err := h.exports.ExportUsers(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithField("request_id", requestID(c)).Infof("exported %d users to %s", export.Count, export.Location)
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Users exported successfully",
		"location":    export.Location,
		"key":         export.Key,
		"count":       export.Count,
		"exported_at": export.ExportedAt.Format(time.RFC3339),
	})
}

func (h *Handler) listExports(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	objects, err := h.exports.ListExports(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, gin.H{"message": "Exports retrieved successfully", "exports": resp})
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
