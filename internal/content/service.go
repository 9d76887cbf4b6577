package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperjump/fulltextable/internal/indexer"
	"github.com/hyperjump/fulltextable/internal/source"
	"github.com/hyperjump/fulltextable/pkg/utils"
	"go.uber.org/zap"
)

// Source type tags for index rows.
const (
	TypeArticle = "Article"
	TypeComment = "Comment"
)

// Register adds the article and comment definitions to reg.
// Articles index title then body; comments index author then body, grouped by article.
func Register(reg *source.Registry, articles *ArticleRepo, comments *CommentRepo) error {
	if err := source.Register(reg, source.Definition[*Article]{
		Type:   TypeArticle,
		ID:     func(a *Article) int64 { return a.ID },
		Fields: source.StructFields[*Article]("Title", "Body"),
		Find:   articles.Find,
	}); err != nil {
		return err
	}
	return source.Register(reg, source.Definition[*Comment]{
		Type:   TypeComment,
		ID:     func(c *Comment) int64 { return c.ID },
		Fields: source.StructFields[*Comment]("Author", "Body"),
		Parent: func(c *Comment) (int64, bool) { return c.ArticleID, true },
		Find:   comments.Find,
	})
}

// Service applies content changes and keeps their index rows in step.
type Service struct {
	Articles *ArticleRepo
	Comments *CommentRepo
	sync     *indexer.Synchronizer
	logger   *zap.Logger
}

// NewService creates a content service over db and registers its types with reg.
func NewService(db *sql.DB, reg *source.Registry, sync *indexer.Synchronizer, logger *zap.Logger) (*Service, error) {
	s := &Service{
		Articles: NewArticleRepo(db),
		Comments: NewCommentRepo(db),
		sync:     sync,
		logger:   utils.OrNop(logger),
	}
	if err := Register(reg, s.Articles, s.Comments); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateArticle stores a and indexes it.
func (s *Service) CreateArticle(ctx context.Context, a *Article) error {
	if err := s.Articles.Create(ctx, a); err != nil {
		return err
	}
	if _, err := s.sync.RecordCreated(ctx, TypeArticle, a); err != nil {
		return fmt.Errorf("failed to index article %d: %w", a.ID, err)
	}
	return nil
}

// UpdateArticle saves a and refreshes its index row.
func (s *Service) UpdateArticle(ctx context.Context, a *Article) error {
	if err := s.Articles.Update(ctx, a); err != nil {
		return err
	}
	stored, err := s.Articles.Get(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *stored
	if _, err := s.sync.RecordUpdated(ctx, TypeArticle, a); err != nil {
		return fmt.Errorf("failed to index article %d: %w", a.ID, err)
	}
	return nil
}

// DeleteArticle removes an article, its comments, and all of their index rows.
func (s *Service) DeleteArticle(ctx context.Context, id int64) error {
	if _, err := s.Articles.Get(ctx, id); err != nil {
		return err
	}
	comments, err := s.Comments.ListByArticle(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if err := s.DeleteComment(ctx, c.ID); err != nil {
			return err
		}
	}
	if err := s.Articles.Delete(ctx, id); err != nil {
		return err
	}
	return s.sync.RecordDeleted(ctx, TypeArticle, id)
}

// CreateComment stores c under an existing article and indexes it.
func (s *Service) CreateComment(ctx context.Context, c *Comment) error {
	if _, err := s.Articles.Get(ctx, c.ArticleID); err != nil {
		return err
	}
	if err := s.Comments.Create(ctx, c); err != nil {
		return err
	}
	if _, err := s.sync.RecordCreated(ctx, TypeComment, c); err != nil {
		return fmt.Errorf("failed to index comment %d: %w", c.ID, err)
	}
	return nil
}

// UpdateComment saves c and refreshes its index row, including a move to another article.
func (s *Service) UpdateComment(ctx context.Context, c *Comment) error {
	if _, err := s.Articles.Get(ctx, c.ArticleID); err != nil {
		return err
	}
	if err := s.Comments.Update(ctx, c); err != nil {
		return err
	}
	stored, err := s.Comments.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	if _, err := s.sync.RecordUpdated(ctx, TypeComment, c); err != nil {
		return fmt.Errorf("failed to index comment %d: %w", c.ID, err)
	}
	return nil
}

// DeleteComment removes a comment and its index row.
func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	if err := s.Comments.Delete(ctx, id); err != nil {
		return err
	}
	return s.sync.RecordDeleted(ctx, TypeComment, id)
}

// Reindex backfills index rows for every stored article and comment.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	articles, err := s.Articles.All(ctx)
	if err != nil {
		return 0, err
	}
	comments, err := s.Comments.All(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	n, err := s.sync.Backfill(ctx, TypeArticle, asRecords(articles))
	total += n
	if err != nil {
		return total, err
	}
	n, err = s.sync.Backfill(ctx, TypeComment, asRecords(comments))
	total += n
	if err != nil {
		return total, err
	}
	s.logger.Info("reindex complete", zap.Int("records", total))
	return total, nil
}

func asRecords[T any](recs []T) []interface{} {
	out := make([]interface{}, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}
