package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/pkg/response"
)

type schemaLister interface {
	Names() []string
}

// SchemaHandler lists the models the dispatcher serves.
type SchemaHandler struct {
	registry schemaLister
}

// NewSchemaHandler builds a new handler.
func NewSchemaHandler(registry schemaLister) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

// List godoc
// @Summary List dispatchable models
// @Tags Dispatch
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /schemas [get]
func (h *SchemaHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, dto.SchemaListResponse{Schemas: h.registry.Names()})
}
