package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	pages    []*notionapi.DatabaseQueryResponse
	requests []*notionapi.DatabaseQueryRequest
	err      error
}

func (f *fakeQuerier) Query(_ context.Context, _ notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return f.pages[i], nil
}

func rich(parts ...string) []notionapi.RichText {
	out := make([]notionapi.RichText, len(parts))
	for i, p := range parts {
		out[i] = notionapi.RichText{PlainText: p}
	}
	return out
}

func row(id, title, content, examples string) notionapi.Page {
	props := notionapi.Properties{}
	if title != "" {
		props["Name"] = &notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: rich(title)}
	}
	if content != "" {
		props["Content"] = &notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: rich(content)}
	}
	if examples != "" {
		props["Example Posts"] = &notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: rich(examples)}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func newTestSource(t *testing.T, q DatabaseQuerier) *Source {
	t.Helper()
	cfg := &config.Config{Notion: config.NotionConfig{DatabaseID: "db"}}
	config.ApplyDefaults(cfg)
	s, err := NewSource(&cfg.Notion, WithQuerier(q))
	require.NoError(t, err)
	return s
}

func TestFetchFirst(t *testing.T) {
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{{
		Results: []notionapi.Page{row("p1", "Title", "Side quests build skills.", "Example one")},
	}}}
	entry, err := newTestSource(t, q).FetchFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Side quests build skills.", entry.Content)
	assert.Equal(t, "Example one", entry.Examples)
	require.Len(t, q.requests, 1)
	assert.Equal(t, 1, q.requests[0].PageSize)
}

func TestFetchFirst_joinsRichTextSegments(t *testing.T) {
	p := notionapi.Page{ID: "p1", Properties: notionapi.Properties{
		"Content": &notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: rich("Bold ", "and plain")},
	}}
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{{Results: []notionapi.Page{p}}}}
	entry, err := newTestSource(t, q).FetchFirst(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bold and plain", entry.Content)
	assert.Empty(t, entry.Examples)
}

func TestFetchFirst_noRows(t *testing.T) {
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{{}}}
	_, err := newTestSource(t, q).FetchFirst(context.Background())
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestFetchFirst_wrongPropertyType(t *testing.T) {
	p := notionapi.Page{ID: "p1", Properties: notionapi.Properties{
		"Content": &notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: 3},
	}}
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{{Results: []notionapi.Page{p}}}}
	_, err := newTestSource(t, q).FetchFirst(context.Background())
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Content", schemaErr.Property)
	assert.Equal(t, "rich_text", schemaErr.Want)
}

func TestFetchFirst_queryError(t *testing.T) {
	boom := errors.New("unauthorized")
	_, err := newTestSource(t, &fakeQuerier{err: boom}).FetchFirst(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFetchAll_paginatesAndFlattens(t *testing.T) {
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{
		{
			Results:    []notionapi.Page{row("p1", "Careers", "Nonlinear paths", "")},
			HasMore:    true,
			NextCursor: "cursor-2",
		},
		{
			Results: []notionapi.Page{
				row("p2", "", "Body only", "Ex"),
				row("p3", "", "", ""),
			},
		},
	}}
	docs, err := newTestSource(t, q).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, q.requests, 2)
	assert.Equal(t, notionapi.Cursor(""), q.requests[0].StartCursor)
	assert.Equal(t, notionapi.Cursor("cursor-2"), q.requests[1].StartCursor)

	require.Len(t, docs, 2, "blank rows are skipped")
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, "Careers", docs[0].Title)
	assert.Equal(t, "Careers\nNonlinear paths", docs[0].Content)
	assert.Equal(t, "Untitled", docs[1].Title)
	assert.Equal(t, "Body only\nEx", docs[1].Content)
}

func TestFetchAll_wrongTitleType(t *testing.T) {
	p := notionapi.Page{ID: "p1", Properties: notionapi.Properties{
		"Name": &notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: rich("x")},
	}}
	q := &fakeQuerier{pages: []*notionapi.DatabaseQueryResponse{{Results: []notionapi.Page{p}}}}
	_, err := newTestSource(t, q).FetchAll(context.Background())
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "title", schemaErr.Want)
}

func TestNewSource_requiresConfiguration(t *testing.T) {
	_, err := NewSource(&config.NotionConfig{APIKey: "k"})
	assert.Error(t, err, "missing database id")
	_, err = NewSource(&config.NotionConfig{DatabaseID: "db"})
	assert.Error(t, err, "missing api key without injected client")
	s, err := NewSource(&config.NotionConfig{DatabaseID: "db", APIKey: "k"})
	require.NoError(t, err)
	assert.NotNil(t, s.db)
}
