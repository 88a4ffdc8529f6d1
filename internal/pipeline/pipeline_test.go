package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/hiddenclasses/internal/approval"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/notion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls []string

type fakeSource struct {
	log   *calls
	entry models.Entry
	err   error
}

func (f *fakeSource) FetchFirst(context.Context) (models.Entry, error) {
	*f.log = append(*f.log, "fetch")
	return f.entry, f.err
}

type fakeRetriever struct {
	log   *calls
	query string
	k     int
	err   error
}

func (f *fakeRetriever) Retrieve(_ context.Context, q string, k int) (string, error) {
	*f.log = append(*f.log, "retrieve")
	f.query, f.k = q, k
	return "related chunk", f.err
}

type fakeWriter struct {
	log       *calls
	retrieved string
	err       error
}

func (f *fakeWriter) Generate(_ context.Context, content, examples, retrieved string) (string, error) {
	*f.log = append(*f.log, "write")
	f.retrieved = retrieved
	return "post about " + content, f.err
}

type fakeIllustrator struct {
	log *calls
	err error
}

func (f *fakeIllustrator) Generate(context.Context, string) (string, error) {
	*f.log = append(*f.log, "image")
	return "/tmp/hiddenclass.png", f.err
}

type fakeReviewer struct {
	log      *calls
	decision approval.Decision
	err      error
}

func (f *fakeReviewer) Review(context.Context, string) (approval.Decision, error) {
	*f.log = append(*f.log, "review")
	return f.decision, f.err
}

type fakePublisher struct {
	log       *calls
	text      string
	imagePath string
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, text, imagePath string) (*models.Published, error) {
	*f.log = append(*f.log, "publish")
	f.text, f.imagePath = text, imagePath
	if f.err != nil {
		return nil, f.err
	}
	return &models.Published{ID: "1", URL: "https://social.example/1"}, nil
}

type fixture struct {
	log         calls
	source      *fakeSource
	retriever   *fakeRetriever
	writer      *fakeWriter
	illustrator *fakeIllustrator
	reviewer    *fakeReviewer
	publisher   *fakePublisher
}

func newFixture() *fixture {
	f := &fixture{}
	f.source = &fakeSource{log: &f.log, entry: models.Entry{Content: "glassblowing", Examples: "ex"}}
	f.retriever = &fakeRetriever{log: &f.log}
	f.writer = &fakeWriter{log: &f.log}
	f.illustrator = &fakeIllustrator{log: &f.log}
	f.reviewer = &fakeReviewer{log: &f.log, decision: approval.Decision{Verdict: approval.Approve}}
	f.publisher = &fakePublisher{log: &f.log}
	return f
}

func (f *fixture) stages() Stages {
	return Stages{
		Source:      f.source,
		Retriever:   f.retriever,
		Writer:      f.writer,
		Illustrator: f.illustrator,
		Reviewer:    f.reviewer,
		Publisher:   f.publisher,
	}
}

func TestRun_approved(t *testing.T) {
	f := newFixture()
	p, err := New(f.stages(), WithTopK(3))
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls{"fetch", "retrieve", "write", "image", "review", "publish"}, f.log)
	assert.False(t, res.Skipped)
	assert.Equal(t, "glassblowing", f.retriever.query)
	assert.Equal(t, 3, f.retriever.k)
	assert.Equal(t, "related chunk", f.writer.retrieved)
	assert.Equal(t, "post about glassblowing", f.publisher.text)
	assert.Equal(t, "/tmp/hiddenclass.png", f.publisher.imagePath)
	require.NotNil(t, res.Published)
	assert.Equal(t, "1", res.Published.ID)
	assert.Equal(t, approval.Approve, res.Decision.Verdict)
}

func TestRun_rejected(t *testing.T) {
	f := newFixture()
	f.reviewer.decision = approval.Decision{Verdict: approval.Reject, Reason: "too salesy"}
	p, err := New(f.stages())
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, f.log, "publish")
	assert.Nil(t, res.Published)
	assert.Equal(t, "too salesy", res.Decision.Reason)
}

func TestRun_emptyDatabaseSkips(t *testing.T) {
	f := newFixture()
	f.source.err = notion.ErrNoRows
	p, err := New(f.stages())
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, calls{"fetch"}, f.log)
}

func TestRun_optionalStagesDisabled(t *testing.T) {
	f := newFixture()
	st := f.stages()
	st.Retriever = nil
	st.Illustrator = nil
	p, err := New(st)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls{"fetch", "write", "review", "publish"}, f.log)
	assert.Empty(t, f.writer.retrieved)
	assert.Empty(t, res.Post.ImagePath)
	assert.Empty(t, f.publisher.imagePath)
}

func TestRun_stageErrorsAbort(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		breakIt func(f *fixture)
		want    string
		last    string
	}{
		{"fetch", func(f *fixture) { f.source.err = boom }, "fetch content", "fetch"},
		{"retrieve", func(f *fixture) { f.retriever.err = boom }, "retrieve context", "retrieve"},
		{"write", func(f *fixture) { f.writer.err = boom }, "write post", "write"},
		{"image", func(f *fixture) { f.illustrator.err = boom }, "generate image", "image"},
		{"review", func(f *fixture) { f.reviewer.err = approval.ErrReviewTimeout }, "review post", "review"},
		{"publish", func(f *fixture) { f.publisher.err = boom }, "publish post", "publish"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.breakIt(f)
			p, err := New(f.stages())
			require.NoError(t, err)

			_, err = p.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.last, f.log[len(f.log)-1])
		})
	}
}

func TestRun_reviewTimeoutIsDetectable(t *testing.T) {
	f := newFixture()
	f.reviewer.err = approval.ErrReviewTimeout
	p, err := New(f.stages())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, approval.ErrReviewTimeout)
}

func TestNew_requiresStages(t *testing.T) {
	_, err := New(Stages{})
	assert.Error(t, err)
}
