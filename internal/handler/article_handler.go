package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/dto"
	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/service"
	appErrors "github.com/ujmp/editorial-api/pkg/errors"
	"github.com/ujmp/editorial-api/pkg/response"
)

// ArticleHandler exposes article CRUD and the editorial workflow endpoints.
type ArticleHandler struct {
	articles *service.ArticleService
	workflow *service.WorkflowService
}

// NewArticleHandler constructs ArticleHandler.
func NewArticleHandler(articles *service.ArticleService, workflow *service.WorkflowService) *ArticleHandler {
	return &ArticleHandler{articles: articles, workflow: workflow}
}

// Create godoc
// @Summary Create a draft article
// @Tags Articles
// @Accept json
// @Produce json
// @Param payload body service.CreateArticleRequest true "Draft payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /articles [post]
func (h *ArticleHandler) Create(c *gin.Context) {
	var req service.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	article, err := h.articles.CreateDraft(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, article)
}

// List godoc
// @Summary List articles visible to the caller
// @Tags Articles
// @Produce json
// @Param status query string false "Comma-separated status filter"
// @Param journalId query string false "Filter by journal"
// @Param search query string false "Search in title and submission id"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles [get]
func (h *ArticleHandler) List(c *gin.Context) {
	var filter models.ArticleFilter
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, models.ArticleStatus(strings.ToUpper(s)))
			}
		}
	}
	filter.JournalID = c.Query("journalId")
	filter.Search = c.Query("search")
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	claims := claimsFromContext(c)
	articles, err := h.articles.List(c.Request.Context(), claims.UserID, claims.Role, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, articles, nil)
}

// Get godoc
// @Summary Get article detail with versions, reviews and allowed actions
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id} [get]
func (h *ArticleHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	detail, err := h.articles.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update a draft article
// @Tags Articles
// @Accept json
// @Produce json
// @Param id path string true "Article ID"
// @Param payload body service.UpdateDraftRequest true "Draft fields"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id} [put]
func (h *ArticleHandler) Update(c *gin.Context) {
	var req service.UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	article, err := h.articles.UpdateDraft(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// UploadManuscript godoc
// @Summary Attach the initial manuscript to a draft
// @Tags Articles
// @Accept json
// @Produce json
// @Param id path string true "Article ID"
// @Param payload body dto.ManuscriptUploadRequest true "Manuscript reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/manuscript [post]
func (h *ArticleHandler) UploadManuscript(c *gin.Context) {
	var req dto.ManuscriptUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	version, err := h.workflow.UploadInitialManuscript(c.Request.Context(), c.Param("id"), claims.UserID, req.ManuscriptFile, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// SubmitRevision godoc
// @Summary Submit a revised manuscript
// @Tags Articles
// @Accept json
// @Produce json
// @Param id path string true "Article ID"
// @Param payload body dto.ManuscriptUploadRequest true "Revised manuscript reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/revisions [post]
func (h *ArticleHandler) SubmitRevision(c *gin.Context) {
	var req dto.ManuscriptUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	version, err := h.workflow.SubmitRevision(c.Request.Context(), c.Param("id"), claims.UserID, req.ManuscriptFile, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// Versions godoc
// @Summary List manuscript versions
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/versions [get]
func (h *ArticleHandler) Versions(c *gin.Context) {
	claims := claimsFromContext(c)
	versions, err := h.articles.Versions(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Timeline godoc
// @Summary List the article's audit timeline
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/timeline [get]
func (h *ArticleHandler) Timeline(c *gin.Context) {
	claims := claimsFromContext(c)
	timeline, err := h.articles.Timeline(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timeline, nil)
}

// Action godoc
// @Summary Perform an editorial workflow action
// @Tags Articles
// @Accept json
// @Produce json
// @Param id path string true "Article ID"
// @Param payload body dto.WorkflowActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/actions [post]
func (h *ArticleHandler) Action(c *gin.Context) {
	var req dto.WorkflowActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	ctx := c.Request.Context()
	articleID := c.Param("id")

	var (
		article *models.Article
		err     error
	)
	switch req.Action {
	case dto.ActionSubmit:
		article, err = h.workflow.Submit(ctx, articleID, claims.UserID, claims.Role)
	case dto.ActionDeskReject:
		article, err = h.workflow.DeskReject(ctx, articleID, claims.UserID, claims.Role, req.Comments)
	case dto.ActionSendToReview:
		article, err = h.workflow.SendToReview(ctx, articleID, claims.UserID, claims.Role)
	case dto.ActionRequestRevision:
		article, err = h.workflow.RequestRevision(ctx, articleID, claims.UserID, claims.Role, req.RevisionType, req.Comments)
	case dto.ActionAccept:
		article, err = h.workflow.Accept(ctx, articleID, claims.UserID, claims.Role, req.Comments)
	case dto.ActionReject:
		article, err = h.workflow.Reject(ctx, articleID, claims.UserID, claims.Role, req.Comments)
	case dto.ActionMoveToProduction:
		article, err = h.workflow.MoveToProduction(ctx, articleID, claims.UserID, claims.Role)
	case dto.ActionSchedule:
		article, err = h.workflow.Schedule(ctx, articleID, claims.UserID, claims.Role)
	case dto.ActionPublish:
		article, err = h.workflow.Publish(ctx, articleID, claims.UserID, claims.Role, req.PublicationURL, req.PublicationDate)
	case dto.ActionArchive:
		article, err = h.workflow.Archive(ctx, articleID, claims.UserID, claims.Role)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown workflow action"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// AllowedActions godoc
// @Summary List statuses the caller's role may move the article to
// @Tags Articles
// @Produce json
// @Param id path string true "Article ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /articles/{id}/allowed-actions [get]
func (h *ArticleHandler) AllowedActions(c *gin.Context) {
	claims := claimsFromContext(c)
	actions, err := h.workflow.AllowedActions(c.Request.Context(), c.Param("id"), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}
