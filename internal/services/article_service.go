package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/knowledgehub/backend/internal/apperrors"
	"github.com/knowledgehub/backend/internal/logger"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/knowledgehub/backend/internal/repositories"
	"github.com/knowledgehub/backend/internal/storage"
	"go.uber.org/zap"
)

// ArticleRepository is the interface that wraps methods for articles table data access
type ArticleRepository interface {
	// Method Create inserts an article with its image metadata and returns the new id.
	Create(ctx context.Context, article *models.Article) (int, error)
	// Method GetByID retrieves an article with its image metadata.
	//
	// Returns repositories.ErrArticleNotFound if there is no such article.
	GetByID(ctx context.Context, id int) (*models.Article, error)
	// Method List retrieves articles matching the filter, newest first.
	List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error)
	// Method Update edits a pending article and returns storage keys of images it no longer references.
	//
	// Returns repositories.ErrStatusChanged if the article left pending.
	Update(ctx context.Context, id int, changes repositories.ArticleChanges) ([]string, error)
	// Method UpdateStatus moves an article from expected to next status.
	//
	// Returns repositories.ErrStatusChanged if the article is not in expected status.
	UpdateStatus(ctx context.Context, id int, expected, next models.Status, updatedAt time.Time) error
}

// DecisionNotifier delivers moderation decisions to article owners
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, event models.DecisionEvent) error
}

const maxSupportingImages = 10

// Column limits of the articles and article_images tables, in characters
const (
	maxTitleLength    = 255
	maxFilenameLength = 255
	maxMimeTypeLength = 100

	maxDisplayNameLength = 255
)

type articleService struct {
	repo     ArticleRepository
	store    storage.ImageStore
	notifier DecisionNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewArticleService creates a new article service
func NewArticleService(repo ArticleRepository, store storage.ImageStore, notifier DecisionNotifier, logger *zap.Logger) *articleService {
	return &articleService{
		repo:     repo,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates a new pending article owned by the caller
func (s *articleService) Submit(ctx context.Context, caller *models.Caller, req models.CreateArticleRequest) (*models.Article, error) {
	const op = "articles.Submit"

	if caller == nil {
		return nil, apperrors.Authentication(op, "authentication required")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if err := validateMetadata(op, title, description); err != nil {
		return nil, err
	}
	if req.Cover == nil || len(req.Cover.Data) == 0 {
		return nil, apperrors.Validation(op, "cover image is required")
	}
	if len(req.SupportingImages) > maxSupportingImages {
		return nil, apperrors.Validation(op, fmt.Sprintf("at most %d supporting images are allowed", maxSupportingImages))
	}

	cover, err := s.storeImage(ctx, op, *req.Cover, models.ImageKindCover)
	if err != nil {
		return nil, err
	}
	stored := []models.Attachment{*cover}

	supporting := make([]models.Attachment, 0, len(req.SupportingImages))
	for _, upload := range req.SupportingImages {
		image, err := s.storeImage(ctx, op, upload, models.ImageKindSupporting)
		if err != nil {
			s.discardImages(ctx, stored)
			return nil, err
		}
		supporting = append(supporting, *image)
		stored = append(stored, *image)
	}

	now := s.now()
	article := &models.Article{
		Title:            title,
		Description:      description,
		Status:           models.StatusPending,
		OwnerID:          caller.ID,
		OwnerDisplayName: displayName(caller),
		OwnerEmail:       caller.Email,
		CreatedAt:        now,
		UpdatedAt:        now,
		CoverImage:       cover,
		SupportingImages: supporting,
	}

	if _, err := s.repo.Create(ctx, article); err != nil {
		s.discardImages(ctx, stored)
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.log(ctx).Info("article submitted",
		zap.Int("article_id", article.ID),
		zap.Int("owner_id", article.OwnerID),
		zap.Int("supporting_images", len(article.SupportingImages)),
	)

	return article, nil
}

// List returns articles visible to the caller.
//
// Anonymous callers and contributors may list published articles.
// Contributors may list any status of their own articles. Moderators may list everything.
func (s *articleService) List(ctx context.Context, caller *models.Caller, filter models.ArticleFilter) ([]models.Article, error) {
	const op = "articles.List"

	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperrors.Validation(op, fmt.Sprintf("invalid status: %s", *filter.Status))
	}

	publishedOnly := filter.Status != nil && *filter.Status == models.StatusPublished
	switch {
	case publishedOnly:
	case caller == nil:
		return nil, apperrors.Authentication(op, "authentication required")
	case caller.Role.CanModerate():
	case filter.OwnerID == nil:
		ownerID := caller.ID
		filter.OwnerID = &ownerID
	case *filter.OwnerID != caller.ID:
		return nil, apperrors.Permission(op, "you can only list your own requests")
	}

	articles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	for i := range articles {
		if err := s.loadImageData(ctx, &articles[i]); err != nil {
			return nil, err
		}
	}

	return articles, nil
}

// Get returns one article if the caller may read it
func (s *articleService) Get(ctx context.Context, caller *models.Caller, id int) (*models.Article, error) {
	const op = "articles.Get"

	article, err := s.getArticle(ctx, op, id)
	if err != nil {
		return nil, err
	}

	if article.Status != models.StatusPublished {
		if caller == nil {
			return nil, apperrors.Authentication(op, "authentication required")
		}
		if article.OwnerID != caller.ID && !caller.Role.CanModerate() {
			return nil, apperrors.Permission(op, "you do not have access to this request")
		}
	}

	if err := s.loadImageData(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// Update edits a pending article owned by the caller
func (s *articleService) Update(ctx context.Context, caller *models.Caller, id int, req models.UpdateArticleRequest) (*models.Article, error) {
	const op = "articles.Update"

	if caller == nil {
		return nil, apperrors.Authentication(op, "authentication required")
	}

	article, err := s.getArticle(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if article.OwnerID != caller.ID {
		return nil, apperrors.Permission(op, "only the owner can edit this request")
	}
	if article.Status != models.StatusPending {
		return nil, apperrors.Permission(op, "only pending requests can be edited")
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if err := validateMetadata(op, title, description); err != nil {
		return nil, err
	}
	if req.Cover != nil && len(req.Cover.Data) == 0 {
		return nil, apperrors.Validation(op, "cover image is empty")
	}
	if article.CoverImage == nil && req.Cover == nil {
		return nil, apperrors.Validation(op, "cover image is required")
	}

	existing := make([]int, 0, len(article.SupportingImages))
	for _, image := range article.SupportingImages {
		existing = append(existing, image.ID)
	}
	for _, removeID := range req.RemoveImageIDs {
		if !slices.Contains(existing, removeID) {
			return nil, apperrors.Validation(op, fmt.Sprintf("image %d does not belong to this request", removeID))
		}
	}
	remaining := len(existing) - len(uniqueIDs(req.RemoveImageIDs)) + len(req.SupportingImages)
	if remaining > maxSupportingImages {
		return nil, apperrors.Validation(op, fmt.Sprintf("at most %d supporting images are allowed", maxSupportingImages))
	}

	changes := repositories.ArticleChanges{
		Title:          title,
		Description:    description,
		UpdatedAt:      s.now(),
		RemoveImageIDs: uniqueIDs(req.RemoveImageIDs),
	}

	var stored []models.Attachment
	if req.Cover != nil {
		cover, err := s.storeImage(ctx, op, *req.Cover, models.ImageKindCover)
		if err != nil {
			return nil, err
		}
		changes.Cover = cover
		stored = append(stored, *cover)
	}
	for _, upload := range req.SupportingImages {
		image, err := s.storeImage(ctx, op, upload, models.ImageKindSupporting)
		if err != nil {
			s.discardImages(ctx, stored)
			return nil, err
		}
		changes.SupportingImages = append(changes.SupportingImages, *image)
		stored = append(stored, *image)
	}

	obsolete, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		s.discardImages(ctx, stored)
		if errors.Is(err, repositories.ErrStatusChanged) {
			return nil, apperrors.Permission(op, "only pending requests can be edited")
		}
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	for _, key := range obsolete {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log(ctx).Warn("failed to delete replaced image", zap.String("key", key), zap.Error(err))
		}
	}

	s.log(ctx).Info("article updated",
		zap.Int("article_id", id),
		zap.Bool("cover_replaced", changes.Cover != nil),
		zap.Int("removed_images", len(changes.RemoveImageIDs)),
		zap.Int("added_images", len(changes.SupportingImages)),
	)

	return s.Get(ctx, caller, id)
}

// Decide publishes or rejects a pending article.
//
// The write is conditional on the expected prior status so that two reviewers
// deciding the same article cannot both succeed.
func (s *articleService) Decide(ctx context.Context, caller *models.Caller, id int, req models.DecisionRequest) (*models.Article, error) {
	const op = "articles.Decide"

	if caller == nil {
		return nil, apperrors.Authentication(op, "authentication required")
	}
	if !caller.Role.CanModerate() {
		return nil, apperrors.Permission(op, "insufficient permissions")
	}
	if !req.Status.IsDecision() {
		return nil, apperrors.Validation(op, fmt.Sprintf("invalid status: %s, must be 'published' or 'rejected'", req.Status))
	}

	expected := req.ExpectedStatus
	if expected == "" {
		expected = models.StatusPending
	}

	article, err := s.getArticle(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if article.Status != expected {
		return nil, apperrors.Conflict(op, fmt.Sprintf("article status is %s, expected %s", article.Status, expected))
	}
	if err := models.CanTransition(article.Status, req.Status); err != nil {
		return nil, apperrors.Conflict(op, err.Error())
	}

	if err := s.repo.UpdateStatus(ctx, id, article.Status, req.Status, s.now()); err != nil {
		if errors.Is(err, repositories.ErrStatusChanged) {
			return nil, apperrors.Conflict(op, "article has already been decided")
		}
		return nil, fmt.Errorf("failed to update article status: %w", err)
	}

	s.log(ctx).Info("article decided",
		zap.Int("article_id", id),
		zap.String("status", string(req.Status)),
		zap.Int("moderator_id", caller.ID),
	)

	event := models.DecisionEvent{
		ArticleID:  id,
		OwnerID:    article.OwnerID,
		OwnerEmail: article.OwnerEmail,
		Title:      article.Title,
		Status:     req.Status,
		RequestID:  logger.RequestID(ctx),
	}
	if err := s.notifier.NotifyDecision(ctx, event); err != nil {
		s.log(ctx).Warn("failed to enqueue decision notification", zap.Int("article_id", id), zap.Error(err))
	}

	return s.Get(ctx, caller, id)
}

// getArticle loads an article and maps a missing row to a not found error
func (s *articleService) getArticle(ctx context.Context, op string, id int) (*models.Article, error) {
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrArticleNotFound) {
			return nil, apperrors.NotFound(op, "knowledge article not found")
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// storeImage validates an upload and writes it to the image store
func (s *articleService) storeImage(ctx context.Context, op string, upload models.ImageUpload, kind models.ImageKind) (*models.Attachment, error) {
	if len(upload.Data) == 0 {
		return nil, apperrors.Validation(op, "image file is empty")
	}

	mimeType := upload.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(upload.Data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, apperrors.Validation(op, fmt.Sprintf("%s is not an image", upload.Filename))
	}
	if len(mimeType) > maxMimeTypeLength {
		return nil, apperrors.Validation(op, "image content type is too long")
	}

	filename := upload.Filename
	if filename == "" {
		filename = string(kind)
	}
	if utf8.RuneCountInString(filename) > maxFilenameLength {
		return nil, apperrors.Validation(op, fmt.Sprintf("image filename must be at most %d characters", maxFilenameLength))
	}

	key := storage.GenerateKey(filename)
	if err := s.store.Put(ctx, key, mimeType, upload.Data); err != nil {
		s.log(ctx).Error("failed to store image", zap.String("filename", filename), zap.Error(err))
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	return &models.Attachment{
		Filename:   filename,
		MimeType:   mimeType,
		Data:       upload.Data,
		HasImage:   true,
		Kind:       kind,
		StorageKey: key,
		Size:       int64(len(upload.Data)),
	}, nil
}

// discardImages removes images stored for a write that did not complete
func (s *articleService) discardImages(ctx context.Context, images []models.Attachment) {
	for _, image := range images {
		if err := s.store.Delete(ctx, image.StorageKey); err != nil {
			s.log(ctx).Warn("failed to discard image", zap.String("key", image.StorageKey), zap.Error(err))
		}
	}
}

// loadImageData fills image payloads from the store.
// Images whose binary is missing are returned as placeholders.
func (s *articleService) loadImageData(ctx context.Context, article *models.Article) error {
	load := func(image *models.Attachment) error {
		data, err := s.store.Get(ctx, image.StorageKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.log(ctx).Warn("image binary missing",
					zap.Int("article_id", article.ID),
					zap.String("key", image.StorageKey),
				)
				image.HasImage = false
				image.Data = nil
				return nil
			}
			return fmt.Errorf("failed to load image: %w", err)
		}
		image.Data = data
		image.HasImage = true
		return nil
	}

	if article.CoverImage != nil {
		if err := load(article.CoverImage); err != nil {
			return err
		}
	}
	for i := range article.SupportingImages {
		if err := load(&article.SupportingImages[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateMetadata(op, title, description string) error {
	if title == "" {
		return apperrors.Validation(op, "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return apperrors.Validation(op, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if description == "" {
		return apperrors.Validation(op, "description is required")
	}
	return nil
}

// displayName is the owner name stored with an article, cut to fit its column
func displayName(caller *models.Caller) string {
	if name := strings.TrimSpace(caller.Name); name != "" {
		if runes := []rune(name); len(runes) > maxDisplayNameLength {
			return string(runes[:maxDisplayNameLength])
		}
		return name
	}
	return fmt.Sprintf("User %d", caller.ID)
}

func uniqueIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// log returns the service logger tagged with the request id carried by ctx
func (s *articleService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
