package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/service"
	"github.com/ujmp/editorial-api/pkg/response"
)

// JournalHandler exposes journal reads.
type JournalHandler struct {
	journals *service.JournalService
}

// NewJournalHandler constructs JournalHandler.
func NewJournalHandler(journals *service.JournalService) *JournalHandler {
	return &JournalHandler{journals: journals}
}

// List godoc
// @Summary List active journals
// @Tags Journals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /journals [get]
func (h *JournalHandler) List(c *gin.Context) {
	journals, err := h.journals.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, journals, nil)
}

// Get godoc
// @Summary Get one journal
// @Tags Journals
// @Produce json
// @Param id path string true "Journal ID"
// @Success 200 {object} response.Envelope
// @Router /journals/{id} [get]
func (h *JournalHandler) Get(c *gin.Context) {
	journal, err := h.journals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, journal, nil)
}
