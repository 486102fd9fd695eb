package handler

import (
	"net/http"
	"strings"

	"github.com/elivate/elivate-backend/internal/response"
	"github.com/elivate/elivate-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the exam rules catalog.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListPrograms godoc
// GET /api/v1/programs
// Returns every program with question bank coverage per subject.
func (h *CatalogHandler) ListPrograms(c *gin.Context) {
	programs, err := h.catalogService.Overview(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"programs": programs})
}

// GetRules godoc
// GET /api/v1/programs/:program/rules
func (h *CatalogHandler) GetRules(c *gin.Context) {
	rs, err := h.catalogService.Rules(strings.ToLower(c.Param("program")))
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"rules": rs})
}
