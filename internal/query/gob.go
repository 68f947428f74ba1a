package query

import (
	"SpectraGuard/internal/model"
	"SpectraGuard/internal/writer"
	"context"
	"errors"
	"io/fs"
	"slices"
)

// gobQuerier scans the gob writer's directory tree on every call.
type gobQuerier struct {
	rootPath string
}

// NewGobQuerier creates a querier over documents written by writer.GobWriter.
func NewGobQuerier(rootPath string) Querier {
	return &gobQuerier{rootPath: rootPath}
}

func (q *gobQuerier) load(ctx context.Context) ([]*model.LogDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := writer.ReadGobDocuments(q.rootPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return docs, err
}

func (q *gobQuerier) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	docs, err := q.load(ctx)
	if err != nil {
		return c, err
	}
	for _, doc := range docs {
		countInto(&c, doc)
	}
	return c, nil
}

func (q *gobQuerier) Documents(ctx context.Context, f Filter) ([]*model.LogDocument, error) {
	docs, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.LogDocument
	for _, doc := range slices.Backward(docs) {
		if !f.matches(doc) {
			continue
		}
		out = append(out, doc)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (q *gobQuerier) Store() string { return "gob" }

func (q *gobQuerier) Close() error { return nil }
