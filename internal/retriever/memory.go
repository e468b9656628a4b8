// Package retriever serves knowledge-base documents to the local backend.
package retriever

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/ragkb-chat/core/internal/filter"
)

const (
	DefaultTopK = 5

	// MetaTitle carries the document title in schema.Document metadata.
	MetaTitle = "_title"
)

// Options are the MemoryIndex specific retrieve options.
type Options struct {
	Filters []filter.RetrievalFilter
}

// WithFilters restricts results to documents matching every filter.
func WithFilters(filters ...filter.RetrievalFilter) retriever.Option {
	return retriever.WrapImplSpecificOptFn(func(o *Options) {
		o.Filters = append(o.Filters, filters...)
	})
}

// MemoryIndex scores documents by query term overlap. It is read-only after
// construction and safe for concurrent use.
type MemoryIndex struct {
	docs []Document
	text []string
}

// NewMemoryIndex indexes docs.
func NewMemoryIndex(docs []Document) *MemoryIndex {
	idx := &MemoryIndex{
		docs: append([]Document(nil), docs...),
		text: make([]string, len(docs)),
	}
	for i, d := range idx.docs {
		idx.text[i] = strings.ToLower(d.Title + " " + d.Content)
	}
	return idx
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int { return len(m.docs) }

func (m *MemoryIndex) GetType() string { return "MemoryIndex" }

type scored struct {
	doc   *Document
	score int
}

// Retrieve returns up to top-k documents. A query without terms matches every
// document that passes the filters; otherwise documents sharing no term with
// the query are dropped. Ties are ordered by id.
func (m *MemoryIndex) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	common := retriever.GetCommonOptions(&retriever.Options{TopK: intPtr(DefaultTopK)}, opts...)
	impl := retriever.GetImplSpecificOptions(&Options{}, opts...)

	terms := Terms(query)
	hits := make([]scored, 0, len(m.docs))
	for i := range m.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := &m.docs[i]
		if !Matches(d.Metadata, impl.Filters) {
			continue
		}
		s := 0
		for _, t := range terms {
			if strings.Contains(m.text[i], t) {
				s++
			}
		}
		if len(terms) > 0 && s == 0 {
			continue
		}
		hits = append(hits, scored{doc: d, score: s})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})
	if k := *common.TopK; k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	out := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		meta := make(map[string]any, len(h.doc.Metadata)+1)
		for k, v := range h.doc.Metadata {
			meta[k] = v
		}
		meta[MetaTitle] = h.doc.Title
		out = append(out, (&schema.Document{
			ID:       h.doc.ID,
			Content:  h.doc.Content,
			MetaData: meta,
		}).WithScore(float64(h.score)))
	}
	return out, nil
}

// TitleOf returns the title of a retrieved document.
func TitleOf(d *schema.Document) string {
	if d == nil {
		return ""
	}
	t, _ := d.MetaData[MetaTitle].(string)
	return t
}

// Terms splits a query into distinct lower-case terms.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func intPtr(v int) *int { return &v }

var _ retriever.Retriever = (*MemoryIndex)(nil)
