package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperjump/fulltextable/internal/models"
)

// CommentRepo handles comment persistence.
type CommentRepo struct {
	db *sql.DB
}

// NewCommentRepo creates a comment repository.
func NewCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create inserts c, setting its ID and timestamp. The article must exist.
func (r *CommentRepo) Create(ctx context.Context, c *Comment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (article_id, author, body) VALUES (?, ?, ?)`,
		c.ArticleID, c.Author, c.Body)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// Get returns the comment with id, or models.ErrNotFound.
func (r *CommentRepo) Get(ctx context.Context, id int64) (*Comment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, article_id, author, body, created_at FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %d: %w", id, models.ErrNotFound)
	}
	return c, err
}

// Update saves the article, author and body of c.
func (r *CommentRepo) Update(ctx context.Context, c *Comment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE comments SET article_id = ?, author = ?, body = ? WHERE id = ?`,
		c.ArticleID, c.Author, c.Body, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("comment %d: %w", c.ID, models.ErrNotFound)
	}
	return nil
}

// Delete removes the comment with id.
func (r *CommentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("comment %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Find loads the comments with the given ids. Missing ids are omitted; order is unspecified.
func (r *CommentRepo) Find(ctx context.Context, ids []int64) ([]*Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, article_id, author, body, created_at FROM comments WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find comments: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

// ListByArticle returns the comments of one article ordered by id.
func (r *CommentRepo) ListByArticle(ctx context.Context, articleID int64) ([]*Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, article_id, author, body, created_at FROM comments WHERE article_id = ? ORDER BY id`,
		articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

// All returns every comment ordered by id.
func (r *CommentRepo) All(ctx context.Context) ([]*Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, article_id, author, body, created_at FROM comments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()
	return collectComments(rows)
}

func scanComment(s scanner) (*Comment, error) {
	var c Comment
	if err := s.Scan(&c.ID, &c.ArticleID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectComments(rows *sql.Rows) ([]*Comment, error) {
	var out []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
