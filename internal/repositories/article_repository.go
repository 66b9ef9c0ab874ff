package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knowledgehub/backend/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrArticleNotFound is returned when no article has the requested id
	ErrArticleNotFound = errors.New("article not found")

	// ErrStatusChanged is returned when a conditional write finds the article in another status
	ErrStatusChanged = errors.New("article status changed")
)

// ArticleChanges describes an edit of a pending article
type ArticleChanges struct {
	Title            string
	Description      string
	UpdatedAt        time.Time
	Cover            *models.Attachment
	RemoveImageIDs   []int
	SupportingImages []models.Attachment
}

// querier is implemented by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type articleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *sql.DB, logger *zap.Logger) *articleRepository {
	return &articleRepository{
		db:     db,
		logger: logger,
	}
}

const articleColumns = `id, title, description, status, owner_id, owner_display_name, owner_email, created_at, updated_at`

// Create inserts an article together with its image metadata and returns the new id
func (r *articleRepository) Create(ctx context.Context, article *models.Article) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO articles (title, description, status, owner_id, owner_display_name, owner_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		article.Title, article.Description, article.Status, article.OwnerID,
		article.OwnerDisplayName, article.OwnerEmail, article.CreatedAt, article.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert article", zap.Error(err))
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get article id: %w", err)
	}

	if article.CoverImage != nil {
		if err := r.insertImage(ctx, tx, int(id), article.CoverImage); err != nil {
			return 0, err
		}
	}
	for i := range article.SupportingImages {
		article.SupportingImages[i].Position = i
		if err := r.insertImage(ctx, tx, int(id), &article.SupportingImages[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	article.ID = int(id)
	return article.ID, nil
}

// insertImage stores one image metadata row and sets its id
func (r *articleRepository) insertImage(ctx context.Context, tx *sql.Tx, articleID int, image *models.Attachment) error {
	query := `
		INSERT INTO article_images (article_id, kind, filename, mime_type, storage_key, size, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		articleID, image.Kind, image.Filename, image.MimeType, image.StorageKey, image.Size, image.Position)
	if err != nil {
		r.logger.Error("failed to insert article image", zap.Int("article_id", articleID), zap.Error(err))
		return fmt.Errorf("failed to insert article image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get image id: %w", err)
	}
	image.ID = int(id)
	return nil
}

// GetByID retrieves an article and its image metadata
func (r *articleRepository) GetByID(ctx context.Context, id int) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`

	var article models.Article
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&article.ID, &article.Title, &article.Description, &article.Status,
		&article.OwnerID, &article.OwnerDisplayName, &article.OwnerEmail, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArticleNotFound
		}
		r.logger.Error("failed to get article", zap.Int("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	images, err := r.loadImages(ctx, r.db, []int{id})
	if err != nil {
		return nil, err
	}
	attachImages(&article, images[id])

	return &article, nil
}

// List retrieves articles matching the filter, newest first
func (r *articleRepository) List(ctx context.Context, filter models.ArticleFilter) ([]models.Article, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.OwnerID != nil {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		conditions = append(conditions,
			"(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(owner_display_name) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + articleColumns + ` FROM articles`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query articles", zap.Error(err))
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	var ids []int
	for rows.Next() {
		var article models.Article
		if err := rows.Scan(
			&article.ID, &article.Title, &article.Description, &article.Status,
			&article.OwnerID, &article.OwnerDisplayName, &article.OwnerEmail, &article.CreatedAt, &article.UpdatedAt,
		); err != nil {
			r.logger.Error("failed to scan article", zap.Error(err))
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
		ids = append(ids, article.ID)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(ids) == 0 {
		return articles, nil
	}

	images, err := r.loadImages(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		attachImages(&articles[i], images[articles[i].ID])
	}

	return articles, nil
}

// loadImages retrieves image metadata for the given articles, grouped by article id
func (r *articleRepository) loadImages(ctx context.Context, q querier, articleIDs []int) (map[int][]models.Attachment, error) {
	placeholders, args := inClause(articleIDs)
	query := fmt.Sprintf(`
		SELECT id, article_id, kind, filename, mime_type, storage_key, size, position
		FROM article_images
		WHERE article_id IN (%s)
		ORDER BY article_id, position, id
	`, placeholders)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query article images", zap.Error(err))
		return nil, fmt.Errorf("failed to query article images: %w", err)
	}
	defer rows.Close()

	images := make(map[int][]models.Attachment, len(articleIDs))
	for rows.Next() {
		var image models.Attachment
		var articleID int
		if err := rows.Scan(&image.ID, &articleID, &image.Kind, &image.Filename, &image.MimeType,
			&image.StorageKey, &image.Size, &image.Position); err != nil {
			r.logger.Error("failed to scan article image", zap.Error(err))
			return nil, fmt.Errorf("failed to scan article image: %w", err)
		}
		image.HasImage = true
		images[articleID] = append(images[articleID], image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image rows: %w", err)
	}

	return images, nil
}

// attachImages splits image rows into the cover and the ordered supporting list
func attachImages(article *models.Article, images []models.Attachment) {
	article.SupportingImages = []models.Attachment{}
	for _, image := range images {
		if image.Kind == models.ImageKindCover {
			cover := image
			article.CoverImage = &cover
			continue
		}
		article.SupportingImages = append(article.SupportingImages, image)
	}
}

// Update applies changes to an article that is still pending.
// It returns the storage keys of images that are no longer referenced.
func (r *articleRepository) Update(ctx context.Context, id int, changes ArticleChanges) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE articles
		SET title = ?, description = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := tx.ExecContext(ctx, query, changes.Title, changes.Description, changes.UpdatedAt, id, models.StatusPending)
	if err != nil {
		r.logger.Error("failed to update article", zap.Int("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update article: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrStatusChanged
	}

	var obsolete []string

	if changes.Cover != nil {
		keys, err := r.deleteImages(ctx, tx, "article_id = ? AND kind = ?", id, models.ImageKindCover)
		if err != nil {
			return nil, err
		}
		obsolete = append(obsolete, keys...)

		changes.Cover.Kind = models.ImageKindCover
		changes.Cover.Position = 0
		if err := r.insertImage(ctx, tx, id, changes.Cover); err != nil {
			return nil, err
		}
	}

	if len(changes.RemoveImageIDs) > 0 {
		placeholders, args := inClause(changes.RemoveImageIDs)
		args = append([]any{id, models.ImageKindSupporting}, args...)
		keys, err := r.deleteImages(ctx, tx, "article_id = ? AND kind = ? AND id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, err
		}
		obsolete = append(obsolete, keys...)
	}

	if len(changes.SupportingImages) > 0 {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM article_images WHERE article_id = ? AND kind = ?`,
			id, models.ImageKindSupporting).Scan(&next)
		if err != nil {
			return nil, fmt.Errorf("failed to get next image position: %w", err)
		}
		for i := range changes.SupportingImages {
			changes.SupportingImages[i].Kind = models.ImageKindSupporting
			changes.SupportingImages[i].Position = next + i
			if err := r.insertImage(ctx, tx, id, &changes.SupportingImages[i]); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return obsolete, nil
}

// deleteImages removes the image rows matching where and returns their storage keys
func (r *articleRepository) deleteImages(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT storage_key FROM article_images WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images to delete: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan image key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image keys: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM article_images WHERE `+where, args...); err != nil {
		r.logger.Error("failed to delete article images", zap.Error(err))
		return nil, fmt.Errorf("failed to delete article images: %w", err)
	}
	return keys, nil
}

// UpdateStatus moves an article from expected to next.
// Returns ErrStatusChanged when the article is no longer in expected status.
func (r *articleRepository) UpdateStatus(ctx context.Context, id int, expected, next models.Status, updatedAt time.Time) error {
	query := `
		UPDATE articles
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query, next, updatedAt, id, expected)
	if err != nil {
		r.logger.Error("failed to update article status", zap.Int("id", id), zap.Error(err))
		return fmt.Errorf("failed to update article status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrStatusChanged
	}

	return nil
}

// inClause builds "?, ?, ?" and the matching argument list
func inClause(ids []int) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards in user input
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
