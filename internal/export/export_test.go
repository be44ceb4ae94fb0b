package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegate/api/internal/dao"
	"delegate/api/internal/digest"
	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
)

var generatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func monthlyDigest() digest.Digest {
	return digest.Digest{
		Tab: digest.TabUpdates,
		Monthly: []digest.MonthlyReport{{
			DAO:             dao.Config{Key: "aave", Name: "Aave"},
			Summary:         "**Treasury** moved to stablecoins.\n\n<script>alert(1)</script>",
			SummaryReady:    true,
			ActiveProposals: 1,
			ClosedProposals: 1,
			TotalVotes:      42,
			Proposals: []digest.ProposalOutcome{
				{ID: "0x1", Title: "Swap | treasury", State: snapshot.StateClosed, Result: "For", Votes: 40},
				{ID: "0x2", Title: "Grants", State: snapshot.StateActive, Votes: 2},
			},
		}},
		Failures: []digest.Failure{{DAO: "lido", Error: "graphql http status 502"}},
	}
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatMarkdown, "md": FormatMarkdown, "HTML": FormatHTML, "pdf": FormatPDF} {
		got, err := ParseFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(monthlyDigest(), generatedAt)

	assert.True(t, strings.HasPrefix(out, "# Monthly DAO updates\n"))
	assert.Contains(t, out, "## Aave")
	assert.Contains(t, out, "1 active, 1 closed, 42 votes")
	assert.Contains(t, out, `| Swap \| treasury | closed | For | 40 |`)
	assert.Contains(t, out, "- lido: graphql http status 502")
}

func TestRenderHTMLSanitisesSummary(t *testing.T) {
	html, err := RenderHTML(monthlyDigest(), generatedAt)
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Monthly DAO updates</title>")
	assert.Contains(t, html, "<strong>Treasury</strong>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Swap | treasury")
	assert.Contains(t, html, `class="state-active"`)
	assert.Contains(t, html, "Generated May 1, 2024 12:00 UTC")
}

func TestRenderWeekly(t *testing.T) {
	d := digest.Digest{
		Tab: digest.TabProposals,
		Weekly: &digest.WeeklyDigest{Items: filter.Paginate([]digest.WeeklyItem{
			{ID: "0x9", Title: "Risk update", DAOName: "Lido", State: snapshot.StateActive, Votes: 7},
		}, 1, 10)},
		WeeklySummary: &digest.Insight{Text: "One proposal this week.", Available: true},
	}
	out := RenderMarkdown(d, generatedAt)
	assert.Contains(t, out, "# Weekly proposals")
	assert.Contains(t, out, "Risk update (Lido)")
	assert.Contains(t, out, "One proposal this week.")
	assert.Contains(t, out, "Page 1 of 1, 1 proposals.")
}

func TestExportFormats(t *testing.T) {
	var printed string
	svc := NewService(
		WithClock(func() time.Time { return generatedAt }),
		WithPDFRenderer(func(_ context.Context, html string) ([]byte, error) {
			printed = html
			return []byte("%PDF-1.7"), nil
		}),
	)
	ctx := context.Background()

	res, err := svc.Export(ctx, monthlyDigest(), FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "updates-digest-2024-05-01.md", res.Filename)
	assert.Equal(t, "text/markdown; charset=utf-8", res.MimeType)

	res, err = svc.Export(ctx, monthlyDigest(), FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "updates-digest-2024-05-01.html", res.Filename)

	res, err = svc.Export(ctx, monthlyDigest(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, []byte("%PDF-1.7"), res.Data)
	assert.Contains(t, printed, "<h2>Aave</h2>")

	_, err = svc.Export(ctx, monthlyDigest(), Format("docx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExportPDFErrorPropagates(t *testing.T) {
	svc := NewService(WithPDFRenderer(func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	}))
	_, err := svc.Export(context.Background(), monthlyDigest(), FormatPDF)
	assert.True(t, errors.Is(err, ErrPDFDependencyMissing))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"Digest v1.2", "digest-v12"},
		{"Special!@#$%Chars", "specialchars"},
		{"", "report"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "very-long-title-that-exceeds-fifty-characters-limi"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeFilename(tt.input))
		})
	}
}

func TestDataURLIsBase64(t *testing.T) {
	assert.Equal(t, "data:text/html;charset=utf-8;base64,PHA+aGk8L3A+", dataURL("<p>hi</p>"))
}

func TestArchiveDisabled(t *testing.T) {
	svc := NewService()
	assert.False(t, svc.ArchiveEnabled())
	_, err := svc.Archive(context.Background(), &Result{})
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[parts[1]] = body
		f.types[parts[1]] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestArchivePut(t *testing.T) {
	s3 := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	archive, err := NewArchive(ArchiveConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "test",
		SecretKey: "testsecret",
		Bucket:    "reports",
	})
	require.NoError(t, err)
	archive.now = func() time.Time { return generatedAt }

	ctx := context.Background()
	require.NoError(t, archive.EnsureBucket(ctx))
	assert.True(t, s3.buckets["reports"])

	svc := NewService(WithArchive(archive))
	key, err := svc.Archive(ctx, &Result{Data: []byte("# digest"), Filename: "digest.md", MimeType: "text/markdown"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "reports/2024/05/01/"))
	assert.True(t, strings.HasSuffix(key, "-digest.md"))
	s3.mu.Lock()
	defer s3.mu.Unlock()
	// Plain HTTP uploads use aws-chunked framing around the payload.
	assert.Contains(t, string(s3.objects[key]), "# digest")
	assert.Equal(t, "text/markdown", s3.types[key])
}
