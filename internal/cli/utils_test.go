package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/approval"
	"github.com/hyperjump/hiddenclasses/internal/indexer"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/pipeline"
	"github.com/hyperjump/hiddenclasses/internal/storage"
)

func sampleReplies() []models.GeneratedReply {
	return []models.GeneratedReply{
		{
			Candidate: models.Candidate{ID: "1", Author: "alice@example.org", Content: "new job?"},
			Judgment:  models.Judgment{ResponseText: "Side paths count too.", RelevanceScore: 0.85, Reasoning: "career question"},
			Published: &models.Published{ID: "r1", URL: "https://social.example/r1"},
		},
		{
			Candidate: models.Candidate{ID: "2", Author: "bob"},
			Judgment:  models.Judgment{ResponseText: "Nice.", RelevanceScore: 0.1, Reasoning: "off topic"},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteReplies_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReplies(&buf, sampleReplies(), true, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 2 posts",
		"GENERATED REPLIES",
		"→ Replying to @alice@example.org",
		"Relevance: 0.85",
		"Reasoning: career question",
		"Reply:\nSide paths count too.",
		"Posted: https://social.example/r1",
		"→ Replying to @bob",
		"Relevance: 0.10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "DRY RUN") {
		t.Error("publishing run should not print the dry-run notice")
	}
}

func TestWriteReplies_dryRun(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReplies(&buf, sampleReplies()[1:], false, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "DRY RUN - no replies posted.") {
		t.Errorf("missing dry-run notice:\n%s", buf.String())
	}
}

func TestWriteReplies_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReplies(&buf, nil, false, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No posts found.") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := WriteReplies(&buf, nil, false, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Replies []models.GeneratedReply `json:"replies"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Replies == nil {
		t.Error("JSON output should contain an empty replies array, not null")
	}
}

func TestWriteReplies_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReplies(&buf, sampleReplies(), false, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Publish bool                    `json:"publish"`
		Replies []models.GeneratedReply `json:"replies"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Publish || len(decoded.Replies) != 2 || decoded.Replies[0].Judgment.RelevanceScore != 0.85 {
		t.Errorf("unexpected decoded output: %+v", decoded)
	}
}

func TestWriteRunResult_text(t *testing.T) {
	tests := []struct {
		name string
		res  *pipeline.Result
		want string
	}{
		{"skipped", &pipeline.Result{Skipped: true}, "nothing to post"},
		{
			"published",
			&pipeline.Result{
				Post:      &models.GeneratedPost{Text: "A post", ImagePath: "/tmp/x.png"},
				Decision:  &approval.Decision{Verdict: approval.Approve},
				Published: &models.Published{URL: "https://social.example/1"},
			},
			"Published: https://social.example/1\n\nA post\nImage: /tmp/x.png",
		},
		{
			"rejected",
			&pipeline.Result{
				Post:     &models.GeneratedPost{Text: "A post"},
				Decision: &approval.Decision{Verdict: approval.Reject, Reason: "off brand"},
			},
			"Rejected: off brand",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteRunResult(&buf, tt.res, OutputText); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q should contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteBuildStats(t *testing.T) {
	var buf bytes.Buffer
	stats := indexer.BuildStats{Documents: 2, Chunks: 9, Duration: 1234567 * time.Microsecond}
	if err := WriteBuildStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "Indexed 2 documents into 9 chunks in 1.235s\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	if err := WriteBuildStats(&buf, indexer.BuildStats{Skipped: true}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "index left unchanged") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &storage.Status{IndexPath: "/d/rag_index.vec", IndexExists: true, Chunks: 4, Dimensions: 1536, DiskUsageBytes: 2048}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/d/rag_index.vec", "Chunks:      4", "Dimensions:  1536", "2.0 KiB"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output should contain %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	st.IndexExists = false
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(no index built)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
