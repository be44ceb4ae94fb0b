package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"delegate/api/internal/digest"
)

// Service renders digests and optionally archives the output.
type Service struct {
	pdf     PDFRenderer
	archive *Archive
	now     func() time.Time
	log     zerolog.Logger
}

type Option func(*Service)

// WithPDFRenderer replaces headless Chrome.
func WithPDFRenderer(r PDFRenderer) Option {
	return func(s *Service) { s.pdf = r }
}

// WithArchive enables Service.Archive.
func WithArchive(a *Archive) Option {
	return func(s *Service) { s.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(opts ...Option) *Service {
	s := &Service{pdf: ChromePDF, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export renders d in the requested format.
func (s *Service) Export(ctx context.Context, d digest.Digest, format Format) (*Result, error) {
	generatedAt := s.now()
	base := sanitizeFilename(fmt.Sprintf("%s digest %s", d.Tab, generatedAt.UTC().Format("2006-01-02")))

	switch format {
	case FormatMarkdown:
		return &Result{
			Data:     []byte(RenderMarkdown(d, generatedAt)),
			Filename: base + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	case FormatHTML, FormatPDF:
		html, err := RenderHTML(d, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		if format == FormatHTML {
			return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8"}, nil
		}
		data, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: base + ".pdf", MimeType: "application/pdf"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ArchiveEnabled reports whether rendered files can be stored.
func (s *Service) ArchiveEnabled() bool {
	return s.archive != nil
}

// Archive stores a rendered result and returns its object key.
func (s *Service) Archive(ctx context.Context, res *Result) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	key, err := s.archive.Put(ctx, res)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("key", key).Int("bytes", len(res.Data)).Msg("report archived")
	return key, nil
}
