package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/hyperjump/fulltextable/internal/query"
)

const (
	fieldType      = "type"
	fieldSourceID  = "source_id"
	fieldValue     = "value"
	fieldValueSort = "value_sort"
	fieldParentID  = "parent_id"

	maxSortKeyLen = 256

	valueAnalyzer = "fulltext_value"
)

var storedFields = []string{fieldType, fieldSourceID, fieldValue, fieldParentID}

// BleveStorage implements Storage on a Bleve index. Each source record is one
// document keyed by "<type>/<id>", which keeps (type, id) unique.
type BleveStorage struct {
	mu    sync.Mutex // serializes read-then-write in Create and Update
	index bleve.Index
}

// NewBleveStorage creates or opens a Bleve index at path. An empty path creates an
// in-memory index. If the index mapping changes, remove the directory and run reindex.
func NewBleveStorage(path string) (*BleveStorage, error) {
	im, err := newRowMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to build Bleve mapping: %w", err)
	}
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveStorage{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveStorage{index: index}, nil
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveStorage{index: index}, nil
}

func newRowMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	// Unicode words, lowercased, no stemming or stop words, so every stored word is a prefix target.
	err := im.AddCustomAnalyzer(valueAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}
	rowMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = valueAnalyzer
	rowMapping.AddFieldMappingsAt(fieldValue, textFieldMapping)

	rowMapping.AddFieldMappingsAt(fieldType, bleve.NewKeywordFieldMapping())

	sortFieldMapping := bleve.NewKeywordFieldMapping()
	sortFieldMapping.Store = false
	rowMapping.AddFieldMappingsAt(fieldValueSort, sortFieldMapping)

	// Ids are decimal keywords: Bleve numerics are float64 and lose precision past 2^53.
	rowMapping.AddFieldMappingsAt(fieldSourceID, bleve.NewKeywordFieldMapping())
	rowMapping.AddFieldMappingsAt(fieldParentID, bleve.NewKeywordFieldMapping())

	im.AddDocumentMapping("row", rowMapping)
	im.DefaultType = "row"
	im.DefaultMapping = rowMapping
	return im, nil
}

func docID(sourceType string, sourceID int64) string {
	return sourceType + "/" + strconv.FormatInt(sourceID, 10)
}

func rowIdentity(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() >> 1)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func rowDocument(row *models.Row) map[string]interface{} {
	sortKey := truncateUTF8(row.Value, maxSortKeyLen)
	doc := map[string]interface{}{
		fieldType:      row.SourceType,
		fieldSourceID:  strconv.FormatInt(row.SourceID, 10),
		fieldValue:     row.Value,
		fieldValueSort: sortKey,
	}
	if row.ParentID != nil {
		doc[fieldParentID] = strconv.FormatInt(*row.ParentID, 10)
	}
	return doc
}

// Create indexes row, failing with *models.ConflictError if it already exists.
func (b *BleveStorage) Create(ctx context.Context, row *models.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := docID(row.SourceType, row.SourceID)
	existing, err := b.get(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return &models.ConflictError{Type: row.SourceType, ID: row.SourceID}
	}
	if err := b.index.Index(id, rowDocument(row)); err != nil {
		return fmt.Errorf("failed to index row: %w", err)
	}
	row.ID = rowIdentity(id)
	return nil
}

// Get returns the row for a source record, or models.ErrNotFound.
func (b *BleveStorage) Get(ctx context.Context, sourceType string, sourceID int64) (*models.Row, error) {
	row, err := b.get(ctx, docID(sourceType, sourceID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("index row %s/%d: %w", sourceType, sourceID, models.ErrNotFound)
	}
	return row, nil
}

func (b *BleveStorage) get(ctx context.Context, id string) (*models.Row, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = storedFields
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve lookup failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil, nil
	}
	return hitRow(results.Hits[0].ID, results.Hits[0].Fields, 0), nil
}

// Update overwrites the value and parent of an existing row.
func (b *BleveStorage) Update(ctx context.Context, row *models.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := docID(row.SourceType, row.SourceID)
	existing, err := b.get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("index row %s/%d: %w", row.SourceType, row.SourceID, models.ErrNotFound)
	}
	if err := b.index.Index(id, rowDocument(row)); err != nil {
		return fmt.Errorf("failed to index row: %w", err)
	}
	return nil
}

// Delete removes the row for a source record. Missing rows are not an error.
func (b *BleveStorage) Delete(ctx context.Context, sourceType string, sourceID int64) error {
	return b.index.Delete(docID(sourceType, sourceID))
}

// Search runs q and returns rows ordered by score descending, then value ascending.
func (b *BleveStorage) Search(ctx context.Context, q *query.Query) ([]*models.Row, error) {
	if q.Empty {
		return []*models.Row{}, nil
	}
	req := bleve.NewSearchRequest(b.buildQuery(q))
	req.Fields = storedFields
	req.SortBy([]string{"-_score", fieldValueSort})
	req.From = q.Offset
	if q.Limit > 0 {
		req.Size = q.Limit
	} else {
		count, err := b.index.DocCount()
		if err != nil {
			return nil, err
		}
		req.Size = int(count)
	}
	if req.Size == 0 || req.From < 0 || req.From > math.MaxInt-req.Size {
		return []*models.Row{}, nil
	}

	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*models.Row, 0, len(results.Hits))
	for _, hit := range results.Hits {
		out = append(out, hitRow(hit.ID, hit.Fields, hit.Score))
	}
	return out, nil
}

// Count returns the number of rows matching q.
func (b *BleveStorage) Count(ctx context.Context, q *query.Query) (int64, error) {
	if q.Empty {
		return 0, nil
	}
	req := bleve.NewSearchRequest(b.buildQuery(q))
	req.Size = 0
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("Bleve count failed: %w", err)
	}
	return int64(results.Total), nil
}

// CountRows returns the total number of index rows.
func (b *BleveStorage) CountRows(ctx context.Context) (int64, error) {
	n, err := b.index.DocCount()
	return int64(n), err
}

// Close closes the index.
func (b *BleveStorage) Close() error {
	return b.index.Close()
}

// buildQuery ORs one prefix clause per term and ANDs in the type and parent restrictions.
func (b *BleveStorage) buildQuery(q *query.Query) blevequery.Query {
	terms := make([]blevequery.Query, 0, len(q.Terms))
	for _, term := range q.Terms {
		words := b.termWords(term)
		if len(words) == 0 {
			continue
		}
		pieces := make([]blevequery.Query, 0, len(words))
		for _, w := range words {
			pq := bleve.NewPrefixQuery(w)
			pq.SetField(fieldValue)
			pieces = append(pieces, pq)
		}
		if len(pieces) == 1 {
			terms = append(terms, pieces[0])
		} else {
			terms = append(terms, bleve.NewConjunctionQuery(pieces...))
		}
	}
	clauses := []blevequery.Query{bleve.NewDisjunctionQuery(terms...)}

	if len(q.Types) > 0 {
		types := make([]blevequery.Query, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, filterTerm(fieldType, t))
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(types...))
	}

	if len(q.Parents) > 0 {
		parents := make([]blevequery.Query, 0, len(q.Parents))
		for _, p := range q.Parents {
			parents = append(parents, filterTerm(fieldParentID, strconv.FormatInt(p, 10)))
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(parents...))
	}

	if len(clauses) == 1 {
		return clauses[0]
	}
	return bleve.NewConjunctionQuery(clauses...)
}

// filterTerm matches a keyword exactly without contributing to the score, so type and
// parent restrictions leave relevance as the text clauses alone rank it.
func filterTerm(field, value string) blevequery.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	tq.SetBoost(0)
	return tq
}

// termWords splits term with the analyzer used on the value field so prefixes line up
// with indexed tokens such as "i'm" or "3.14". Terms the analyzer drops entirely
// fall back to plain word splitting, as do indexes created before the analyzer existed.
func (b *BleveStorage) termWords(term string) []string {
	if analyzer := b.index.Mapping().AnalyzerNamed(valueAnalyzer); analyzer != nil {
		tokens := analyzer.Analyze([]byte(term))
		words := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			words = append(words, string(tok.Term))
		}
		if len(words) > 0 {
			return words
		}
	}
	return query.Words(term)
}

func hitRow(id string, fields map[string]interface{}, score float64) *models.Row {
	row := &models.Row{ID: rowIdentity(id), Relevance: score}
	if v, ok := fields[fieldType].(string); ok {
		row.SourceType = v
	}
	if v, ok := fields[fieldSourceID].(string); ok {
		row.SourceID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields[fieldValue].(string); ok {
		row.Value = v
	}
	if v, ok := fields[fieldParentID].(string); ok {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil {
			row.ParentID = &p
		}
	}
	return row
}
