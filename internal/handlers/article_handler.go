package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	authMiddleware "github.com/knowledgehub/backend/internal/auth/middleware"
	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
)

// ArticleService is the interface that wraps methods for knowledge article business logic.
type ArticleService interface {
	// Method Submit creates a pending article owned by the caller.
	//
	// Returns a validation error for blank metadata or a missing cover image.
	Submit(ctx context.Context, caller *models.Caller, req models.CreateArticleRequest) (*models.Article, error)
	// Method List returns articles visible to the caller. Caller is nil for anonymous requests.
	List(ctx context.Context, caller *models.Caller, filter models.ArticleFilter) ([]models.Article, error)
	// Method Get returns one article if the caller may read it.
	Get(ctx context.Context, caller *models.Caller, id int) (*models.Article, error)
	// Method Update edits a pending article owned by the caller.
	//
	// Returns a permission error if the caller is not the owner or the article is no longer pending.
	Update(ctx context.Context, caller *models.Caller, id int, req models.UpdateArticleRequest) (*models.Article, error)
	// Method Decide publishes or rejects a pending article.
	//
	// Returns a conflict error if the article is not in the expected status.
	Decide(ctx context.Context, caller *models.Caller, id int, req models.DecisionRequest) (*models.Article, error)
}

const (
	// CallerIDHeader optionally repeats the caller id carried by the token
	CallerIDHeader = "X-User-ID"

	maxMultipartMemory = 32 << 20
)

// ArticleHandler handles HTTP requests for knowledge articles
type ArticleHandler struct {
	BaseHandler
	service   ArticleService
	validator authMiddleware.TokenValidator
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(svc ArticleService, logger *zap.Logger, validator authMiddleware.TokenValidator) *ArticleHandler {
	return &ArticleHandler{
		service:     svc,
		validator:   validator,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all article handler routes
func (h *ArticleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/knowledge-articles", func(r chi.Router) {
		// Published items are readable without a session
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthMiddleware(h.validator))
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthMiddleware(h.validator))
			r.Post("/", h.Submit)
			r.Put("/{id}", h.Update)
			r.Patch("/{id}", h.Update)
			r.With(authMiddleware.RoleMiddleware(models.RoleMainModerator)).Patch("/{id}/status", h.Decide)
		})
	})
}

// Submit handles POST /api/v1/knowledge-articles
// @Summary Submit a knowledge article
// @Description Create a new article for review. The status is always set to pending.
// @Tags knowledge-articles
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param coverImage formData file true "Cover image"
// @Param supportingImages formData file false "Supporting images (repeatable)"
// @Success 201 {object} models.MutationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/knowledge-articles [post]
func (h *ArticleHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Debug("failed to parse multipart form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := models.CreateArticleRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	// A missing cover is reported by the service as a validation error
	cover, err := formImage(r.MultipartForm, "coverImage")
	if err != nil && !errors.Is(err, errNoFile) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Cover = cover

	if req.SupportingImages, err = formImages(r.MultipartForm, "supportingImages"); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.service.Submit(r.Context(), caller, req)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to submit article")
		return
	}

	h.respondJSON(w, http.StatusCreated, models.MutationResponse{
		Message: "Knowledge article submitted successfully",
		Data:    article,
	})
}

// List handles GET /api/v1/knowledge-articles
// @Summary List knowledge articles
// @Description List articles. Anonymous callers may only list published articles.
// @Tags knowledge-articles
// @Produce json
// @Param status query string false "Status filter (draft, pending, published, archived, rejected or all)"
// @Param ownerId query int false "Owner filter"
// @Param search query string false "Case-insensitive text over title, description and owner name"
// @Success 200 {array} models.Article
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/knowledge-articles [get]
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.optionalCaller(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := models.ArticleFilter{Search: query.Get("search")}

	if status := strings.ToLower(strings.TrimSpace(query.Get("status"))); status != "" && status != models.FilterAll {
		s := models.Status(status)
		filter.Status = &s
	}

	if ownerParam := query.Get("ownerId"); ownerParam != "" {
		ownerID, err := strconv.Atoi(ownerParam)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid ownerId parameter")
			return
		}
		filter.OwnerID = &ownerID
	}

	articles, err := h.service.List(r.Context(), caller, filter)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to list articles")
		return
	}

	h.respondJSON(w, http.StatusOK, articles)
}

// Get handles GET /api/v1/knowledge-articles/{id}
// @Summary Get a knowledge article
// @Description Owners and moderators may read any status; everyone may read published articles.
// @Tags knowledge-articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} models.Article
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/knowledge-articles/{id} [get]
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.optionalCaller(w, r)
	if !ok {
		return
	}

	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	article, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to get article")
		return
	}

	h.respondJSON(w, http.StatusOK, article)
}

// Update handles PUT|PATCH /api/v1/knowledge-articles/{id}
// @Summary Update a pending knowledge article
// @Description Only the owner may edit, and only while the article is pending.
// @Tags knowledge-articles
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param coverImage formData file false "Replacement cover image"
// @Param removeImageIds formData string false "JSON array of supporting image ids to remove"
// @Param supportingImages formData file false "Supporting images to add (repeatable)"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/knowledge-articles/{id} [put]
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Debug("failed to parse multipart form", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := models.UpdateArticleRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	if raw := strings.TrimSpace(r.FormValue("removeImageIds")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.RemoveImageIDs); err != nil {
			h.respondError(w, http.StatusBadRequest, "removeImageIds must be a JSON array of image ids")
			return
		}
	}

	cover, err := formImage(r.MultipartForm, "coverImage")
	if err != nil && !errors.Is(err, errNoFile) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Cover = cover

	if req.SupportingImages, err = formImages(r.MultipartForm, "supportingImages"); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.service.Update(r.Context(), caller, id, req)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to update article")
		return
	}

	h.respondJSON(w, http.StatusOK, models.MutationResponse{
		Message: "Knowledge article updated successfully",
		Data:    article,
	})
}

// Decide handles PATCH /api/v1/knowledge-articles/{id}/status
// @Summary Publish or reject a pending knowledge article
// @Description Requires main_moderator or admin role. Fails with 409 when the article is no longer pending.
// @Tags knowledge-articles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Article ID"
// @Param request body models.DecisionRequest true "Decision"
// @Success 200 {object} models.MutationResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/knowledge-articles/{id}/status [patch]
func (h *ArticleHandler) Decide(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Status = models.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))

	article, err := h.service.Decide(r.Context(), caller, id, req)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to decide article")
		return
	}

	h.respondJSON(w, http.StatusOK, models.MutationResponse{
		Message: fmt.Sprintf("Knowledge article %s", article.Status),
		Data:    article,
	})
}

// caller returns the authenticated caller or writes a 401/403 response
func (h *ArticleHandler) caller(w http.ResponseWriter, r *http.Request) (*models.Caller, bool) {
	caller, ok := h.optionalCaller(w, r)
	if !ok {
		return nil, false
	}
	if caller == nil {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return caller, true
}

// optionalCaller returns the caller if any, rejecting a caller id header that disagrees with the token
func (h *ArticleHandler) optionalCaller(w http.ResponseWriter, r *http.Request) (*models.Caller, bool) {
	caller, _ := authMiddleware.GetCaller(r.Context())

	if header := r.Header.Get(CallerIDHeader); header != "" && caller != nil {
		if headerID, err := strconv.Atoi(header); err != nil || headerID != caller.ID {
			h.respondError(w, http.StatusForbidden, "caller id does not match session")
			return nil, false
		}
	}
	return caller, true
}

func (h *ArticleHandler) articleID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid article id")
		return 0, false
	}
	return id, true
}

var errNoFile = errors.New("no file uploaded")

// formImage reads the single file sent under field
func formImage(form *multipart.Form, field string) (*models.ImageUpload, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, errNoFile
	}
	upload, err := readUpload(headers[0])
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// formImages reads every file sent under field or field[]
func formImages(form *multipart.Form, field string) ([]models.ImageUpload, error) {
	headers := append(slices.Clone(form.File[field]), form.File[field+"[]"]...)
	uploads := make([]models.ImageUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (models.ImageUpload, error) {
	file, err := header.Open()
	if err != nil {
		return models.ImageUpload{}, fmt.Errorf("failed to read %s", header.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.ImageUpload{}, fmt.Errorf("failed to read %s", header.Filename)
	}

	return models.ImageUpload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
