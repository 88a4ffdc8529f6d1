// Package notion reads source material from a Notion database.
package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"github.com/jomei/notionapi"
	"go.uber.org/zap"
)

// ErrNoRows is returned by FetchFirst when the database is empty.
var ErrNoRows = errors.New("no rows found in notion database")

const untitled = "Untitled"

// SchemaError reports a database property whose type is not the one expected.
type SchemaError struct {
	Property string
	Want     string
	Got      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("notion property %q: expected %s, got %s", e.Property, e.Want, e.Got)
}

// DatabaseQuerier is the part of the Notion API the source needs.
// notionapi.DatabaseService satisfies it.
type DatabaseQuerier interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// Source fetches rows from one database.
type Source struct {
	db         DatabaseQuerier
	databaseID notionapi.DatabaseID
	props      config.NotionConfig
	logger     *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithQuerier replaces the Notion client, e.g. with a fake in tests.
func WithQuerier(q DatabaseQuerier) Option {
	return func(s *Source) { s.db = q }
}

// NewSource creates a source for cfg.DatabaseID authenticated with cfg.APIKey.
func NewSource(cfg *config.NotionConfig, opts ...Option) (*Source, error) {
	s := &Source{
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
		props:      *cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	if cfg.DatabaseID == "" {
		return nil, errors.New("notion database id is not configured")
	}
	if s.db == nil {
		if cfg.APIKey == "" {
			return nil, errors.New("notion api key is not configured")
		}
		s.db = notionapi.NewClient(notionapi.Token(cfg.APIKey)).Database
	}
	return s, nil
}

// FetchFirst returns the content and example posts of the database's first row.
func (s *Source) FetchFirst(ctx context.Context) (models.Entry, error) {
	resp, err := s.db.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{PageSize: 1})
	if err != nil {
		return models.Entry{}, fmt.Errorf("query notion database: %w", err)
	}
	if len(resp.Results) == 0 {
		return models.Entry{}, ErrNoRows
	}
	page := resp.Results[0]
	content, err := richText(page.Properties, s.props.ContentProperty)
	if err != nil {
		return models.Entry{}, err
	}
	examples, err := richText(page.Properties, s.props.ExamplesProperty)
	if err != nil {
		return models.Entry{}, err
	}
	s.logger.Debug("fetched first notion row", zap.String("page_id", page.ID.String()))
	return models.Entry{Content: content, Examples: examples}, nil
}

// FetchAll returns every row with non-blank text as a Document, following
// pagination until the database reports no more results.
func (s *Source) FetchAll(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	req := &notionapi.DatabaseQueryRequest{}
	pages := 0
	for {
		resp, err := s.db.Query(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query notion database: %w", err)
		}
		pages++
		for _, page := range resp.Results {
			doc, ok, err := s.document(page)
			if err != nil {
				return nil, err
			}
			if ok {
				docs = append(docs, doc)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		req = &notionapi.DatabaseQueryRequest{StartCursor: resp.NextCursor}
	}
	s.logger.Info("fetched notion documents", zap.Int("documents", len(docs)), zap.Int("requests", pages))
	return docs, nil
}

func (s *Source) document(page notionapi.Page) (models.Document, bool, error) {
	title, err := titleText(page.Properties, s.props.TitleProperty)
	if err != nil {
		return models.Document{}, false, err
	}
	content, err := richText(page.Properties, s.props.ContentProperty)
	if err != nil {
		return models.Document{}, false, err
	}
	examples, err := richText(page.Properties, s.props.ExamplesProperty)
	if err != nil {
		return models.Document{}, false, err
	}
	full := utils.JoinNonBlank("\n", title, content, examples)
	if utils.IsBlank(full) {
		return models.Document{}, false, nil
	}
	if title == "" {
		title = untitled
	}
	return models.Document{ID: page.ID.String(), Title: title, Content: full}, true, nil
}

// richText returns the plain text of a rich_text property. A missing property is empty.
func richText(props notionapi.Properties, name string) (string, error) {
	p, ok := props[name]
	if !ok || p == nil {
		return "", nil
	}
	rt, ok := p.(*notionapi.RichTextProperty)
	if !ok {
		return "", &SchemaError{Property: name, Want: "rich_text", Got: string(p.GetType())}
	}
	return plainText(rt.RichText), nil
}

// titleText returns the plain text of a title property. A missing property is empty.
func titleText(props notionapi.Properties, name string) (string, error) {
	p, ok := props[name]
	if !ok || p == nil {
		return "", nil
	}
	tp, ok := p.(*notionapi.TitleProperty)
	if !ok {
		return "", &SchemaError{Property: name, Want: "title", Got: string(p.GetType())}
	}
	return plainText(tp.Title), nil
}

func plainText(segments []notionapi.RichText) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.PlainText)
	}
	return b.String()
}
