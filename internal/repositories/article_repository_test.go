package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/knowledgehub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupArticleTestRepository creates a repository with a mock database
func setupArticleTestRepository(t *testing.T) (*articleRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewArticleRepository(db, zap.NewNop())

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

var (
	articleCols = []string{"id", "title", "description", "status", "owner_id", "owner_display_name", "owner_email", "created_at", "updated_at"}
	imageCols   = []string{"id", "article_id", "kind", "filename", "mime_type", "storage_key", "size", "position"}
	fixedTime   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func TestNewArticleRepository(t *testing.T) {
	logger := zap.NewNop()
	db := &sql.DB{}

	repo := NewArticleRepository(db, logger)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
	assert.Equal(t, logger, repo.logger)
}

func TestArticleRepository_Create(t *testing.T) {
	newArticle := func() *models.Article {
		return &models.Article{
			Title:            "Soil Health Basics",
			Description:      "Compost and cover crops",
			Status:           models.StatusPending,
			OwnerID:          7,
			OwnerDisplayName: "Ana",
			OwnerEmail:       "ana@example.com",
			CreatedAt:        fixedTime,
			UpdatedAt:        fixedTime,
			CoverImage: &models.Attachment{
				Kind: models.ImageKindCover, Filename: "a.jpg", MimeType: "image/jpeg", StorageKey: "k-a.jpg", Size: 3,
			},
			SupportingImages: []models.Attachment{
				{Kind: models.ImageKindSupporting, Filename: "b.png", MimeType: "image/png", StorageKey: "k-b.png", Size: 4},
				{Kind: models.ImageKindSupporting, Filename: "c.png", MimeType: "image/png", StorageKey: "k-c.png", Size: 5},
			},
		}
	}

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedID    int
		expectedError bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO articles`).
					WithArgs("Soil Health Basics", "Compost and cover crops", models.StatusPending, 7, "Ana", "ana@example.com", fixedTime, fixedTime).
					WillReturnResult(sqlmock.NewResult(10, 1))
				mock.ExpectExec(`INSERT INTO article_images`).
					WithArgs(10, models.ImageKindCover, "a.jpg", "image/jpeg", "k-a.jpg", int64(3), 0).
					WillReturnResult(sqlmock.NewResult(100, 1))
				mock.ExpectExec(`INSERT INTO article_images`).
					WithArgs(10, models.ImageKindSupporting, "b.png", "image/png", "k-b.png", int64(4), 0).
					WillReturnResult(sqlmock.NewResult(101, 1))
				mock.ExpectExec(`INSERT INTO article_images`).
					WithArgs(10, models.ImageKindSupporting, "c.png", "image/png", "k-c.png", int64(5), 1).
					WillReturnResult(sqlmock.NewResult(102, 1))
				mock.ExpectCommit()
			},
			expectedID: 10,
		},
		{
			name: "article insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO articles`).WillReturnError(errors.New("database error"))
				mock.ExpectRollback()
			},
			expectedError: true,
		},
		{
			name: "image insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO articles`).WillReturnResult(sqlmock.NewResult(10, 1))
				mock.ExpectExec(`INSERT INTO article_images`).WillReturnError(errors.New("database error"))
				mock.ExpectRollback()
			},
			expectedError: true,
		},
		{
			name: "begin fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("connection lost"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupArticleTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			article := newArticle()
			id, err := repo.Create(context.Background(), article)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, id)
				assert.Equal(t, tt.expectedID, article.ID)
				assert.Equal(t, 100, article.CoverImage.ID)
				assert.Equal(t, 101, article.SupportingImages[0].ID)
				assert.Equal(t, 102, article.SupportingImages[1].ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestArticleRepository_GetByID(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		anyError      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM articles WHERE id = \?`).
					WithArgs(10).
					WillReturnRows(sqlmock.NewRows(articleCols).
						AddRow(10, "Rice", "Paddy guide", "pending", 7, "Ana", "ana@example.com", fixedTime, fixedTime))
				mock.ExpectQuery(`FROM article_images WHERE article_id IN \(\?\)`).
					WithArgs(10).
					WillReturnRows(sqlmock.NewRows(imageCols).
						AddRow(100, 10, "cover", "a.jpg", "image/jpeg", "k-a.jpg", 3, 0).
						AddRow(101, 10, "supporting", "b.png", "image/png", "k-b.png", 4, 0).
						AddRow(102, 10, "supporting", "c.png", "image/png", "k-c.png", 5, 1))
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM articles WHERE id = \?`).
					WithArgs(10).
					WillReturnRows(sqlmock.NewRows(articleCols))
			},
			expectedError: ErrArticleNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM articles WHERE id = \?`).
					WithArgs(10).
					WillReturnError(errors.New("database error"))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupArticleTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			article, err := repo.GetByID(context.Background(), 10)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, article)
			case tt.anyError:
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrArticleNotFound)
			default:
				require.NoError(t, err)
				assert.Equal(t, models.StatusPending, article.Status)
				require.NotNil(t, article.CoverImage)
				assert.Equal(t, "a.jpg", article.CoverImage.Filename)
				assert.True(t, article.CoverImage.HasImage)
				require.Len(t, article.SupportingImages, 2)
				assert.Equal(t, 101, article.SupportingImages[0].ID)
				assert.Equal(t, 102, article.SupportingImages[1].ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestArticleRepository_List(t *testing.T) {
	pending := models.StatusPending
	owner := 7

	tests := []struct {
		name          string
		filter        models.ArticleFilter
		setupMock     func(sqlmock.Sqlmock)
		expectedCount int
		expectedError bool
	}{
		{
			name:   "all filters",
			filter: models.ArticleFilter{Status: &pending, OwnerID: &owner, Search: " Rice "},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM articles WHERE status = \? AND owner_id = \? AND \(LOWER\(title\) LIKE \? OR LOWER\(description\) LIKE \? OR LOWER\(owner_display_name\) LIKE \?\) ORDER BY created_at DESC, id DESC`).
					WithArgs(models.StatusPending, 7, "%rice%", "%rice%", "%rice%").
					WillReturnRows(sqlmock.NewRows(articleCols).
						AddRow(11, "Rice terraces", "d", "pending", 7, "Ana", "ana@example.com", fixedTime, fixedTime).
						AddRow(10, "Paddy", "rice guide", "pending", 7, "Ana", "ana@example.com", fixedTime, fixedTime))
				mock.ExpectQuery(`FROM article_images WHERE article_id IN \(\?, \?\)`).
					WithArgs(11, 10).
					WillReturnRows(sqlmock.NewRows(imageCols).
						AddRow(100, 10, "cover", "a.jpg", "image/jpeg", "k-a.jpg", 3, 0))
			},
			expectedCount: 2,
		},
		{
			name:   "no filter and no rows",
			filter: models.ArticleFilter{},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM articles ORDER BY created_at DESC, id DESC`).
					WillReturnRows(sqlmock.NewRows(articleCols))
			},
			expectedCount: 0,
		},
		{
			name:   "search escapes wildcards",
			filter: models.ArticleFilter{Search: "100%_"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM articles WHERE`).
					WithArgs(`%100\%\_%`, `%100\%\_%`, `%100\%\_%`).
					WillReturnRows(sqlmock.NewRows(articleCols))
			},
			expectedCount: 0,
		},
		{
			name:   "query error",
			filter: models.ArticleFilter{},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM articles`).WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupArticleTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			articles, err := repo.List(context.Background(), tt.filter)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, articles, tt.expectedCount)
				assert.NotNil(t, articles)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestArticleRepository_Update(t *testing.T) {
	t.Run("replace cover, remove and add supporting images", func(t *testing.T) {
		repo, mock, cleanup := setupArticleTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE articles SET title = \?, description = \?, updated_at = \? WHERE id = \? AND status = \?`).
			WithArgs("New title", "New description", fixedTime, 10, models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT storage_key FROM article_images WHERE article_id = \? AND kind = \?`).
			WithArgs(10, models.ImageKindCover).
			WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("old-cover.jpg"))
		mock.ExpectExec(`DELETE FROM article_images WHERE article_id = \? AND kind = \?`).
			WithArgs(10, models.ImageKindCover).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO article_images`).
			WithArgs(10, models.ImageKindCover, "new.jpg", "image/jpeg", "new-key.jpg", int64(3), 0).
			WillReturnResult(sqlmock.NewResult(200, 1))
		mock.ExpectQuery(`SELECT storage_key FROM article_images WHERE article_id = \? AND kind = \? AND id IN \(\?\)`).
			WithArgs(10, models.ImageKindSupporting, 101).
			WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("k-b.png"))
		mock.ExpectExec(`DELETE FROM article_images WHERE article_id = \? AND kind = \? AND id IN \(\?\)`).
			WithArgs(10, models.ImageKindSupporting, 101).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COALESCE\(MAX\(position\), -1\) \+ 1 FROM article_images`).
			WithArgs(10, models.ImageKindSupporting).
			WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(2))
		mock.ExpectExec(`INSERT INTO article_images`).
			WithArgs(10, models.ImageKindSupporting, "add.png", "image/png", "add-key.png", int64(2), 2).
			WillReturnResult(sqlmock.NewResult(201, 1))
		mock.ExpectCommit()

		changes := ArticleChanges{
			Title:            "New title",
			Description:      "New description",
			UpdatedAt:        fixedTime,
			Cover:            &models.Attachment{Filename: "new.jpg", MimeType: "image/jpeg", StorageKey: "new-key.jpg", Size: 3},
			RemoveImageIDs:   []int{101},
			SupportingImages: []models.Attachment{{Filename: "add.png", MimeType: "image/png", StorageKey: "add-key.png", Size: 2}},
		}
		obsolete, err := repo.Update(context.Background(), 10, changes)

		require.NoError(t, err)
		assert.Equal(t, []string{"old-cover.jpg", "k-b.png"}, obsolete)
		assert.Equal(t, 200, changes.Cover.ID)
		assert.Equal(t, 201, changes.SupportingImages[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("metadata only", func(t *testing.T) {
		repo, mock, cleanup := setupArticleTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE articles`).
			WithArgs("T", "D", fixedTime, 10, models.StatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		obsolete, err := repo.Update(context.Background(), 10, ArticleChanges{Title: "T", Description: "D", UpdatedAt: fixedTime})

		require.NoError(t, err)
		assert.Empty(t, obsolete)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("article no longer pending", func(t *testing.T) {
		repo, mock, cleanup := setupArticleTestRepository(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE articles`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.Update(context.Background(), 10, ArticleChanges{Title: "T", Description: "D", UpdatedAt: fixedTime})

		assert.ErrorIs(t, err, ErrStatusChanged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestArticleRepository_UpdateStatus(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		anyError      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE articles SET status = \?, updated_at = \? WHERE id = \? AND status = \?`).
					WithArgs(models.StatusPublished, fixedTime, 10, models.StatusPending).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already decided",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE articles SET status`).
					WithArgs(models.StatusPublished, fixedTime, 10, models.StatusPending).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedError: ErrStatusChanged,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE articles SET status`).WillReturnError(errors.New("database error"))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupArticleTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			err := repo.UpdateStatus(context.Background(), 10, models.StatusPending, models.StatusPublished, fixedTime)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.anyError:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
