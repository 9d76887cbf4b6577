package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/fulltextable/internal/models"
)

// ArticleRepo handles article persistence.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates an article repository.
func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// Create inserts a, setting its ID and timestamps.
func (r *ArticleRepo) Create(ctx context.Context, a *Article) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (title, body) VALUES (?, ?)`, a.Title, a.Body)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

// Get returns the article with id, or models.ErrNotFound.
func (r *ArticleRepo) Get(ctx context.Context, id int64) (*Article, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	return a, err
}

// Update saves the title and body of a.
func (r *ArticleRepo) Update(ctx context.Context, a *Article) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE articles SET title = ?, body = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		a.Title, a.Body, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("article %d: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

// Delete removes the article with id.
func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("article %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Find loads the articles with the given ids. Missing ids are omitted; order is unspecified.
func (r *ArticleRepo) Find(ctx context.Context, ids []int64) ([]*Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM articles WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find articles: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

// All returns every article ordered by id.
func (r *ArticleRepo) All(ctx context.Context) ([]*Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, body, created_at, updated_at FROM articles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()
	return collectArticles(rows)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(s scanner) (*Article, error) {
	var a Article
	if err := s.Scan(&a.ID, &a.Title, &a.Body, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func collectArticles(rows *sql.Rows) ([]*Article, error) {
	var out []*Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
