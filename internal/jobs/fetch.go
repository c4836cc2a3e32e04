package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// placeholderBlob marks a dated report folder as created.
const placeholderBlob = ".keep"

// Fetcher stages the latest raw news and social posts as individual report
// blobs in today's dated folder of the processed bucket.
type Fetcher struct {
	raw       domain.BlobStore
	processed domain.BlobStore
	prefix    string
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(raw, processed domain.BlobStore, folderPrefix string, clock clockwork.Clock, logger *slog.Logger) *Fetcher {
	return &Fetcher{raw: raw, processed: processed, prefix: folderPrefix, clock: clock, logger: logger}
}

func (f *Fetcher) Name() string { return FetchReports }

// Run copies news.txt as one report and each blank-line separated post of
// tweets.txt as its own report. Numbering continues after the reports already
// in the folder and never overwrites one. Missing raw blobs are skipped.
func (f *Fetcher) Run(ctx context.Context) (Result, error) {
	folder := domain.ReportFolder(f.prefix, f.clock.Now())

	if err := f.ensureFolder(ctx, folder); err != nil {
		return Result{}, err
	}

	existing, err := f.processed.List(ctx, folder)
	if err != nil {
		return Result{}, fmt.Errorf("list %s: %w", folder, err)
	}
	next := 0
	for _, b := range existing {
		if domain.IsReportBlob(b.Name) {
			next++
		}
	}

	var reports []string
	news, err := f.readRaw(ctx, NewsBlob)
	if err != nil {
		return Result{}, err
	}
	if news != "" {
		reports = append(reports, news)
	}

	tweets, err := f.readRaw(ctx, TweetsBlob)
	if err != nil {
		return Result{}, err
	}
	reports = append(reports, SplitPosts(tweets)...)

	written := 0
	for _, content := range reports {
		name, err := f.nextFreeName(ctx, folder, &next)
		if err != nil {
			return Result{Count: written}, err
		}
		if err := f.processed.Write(ctx, name, content, "text/plain"); err != nil {
			return Result{Count: written}, fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}

	f.logger.Info("reports staged", "folder", folder, "count", written, "next_index", next)
	return Result{Count: written, Message: "Raw reports fetched into processed folder"}, nil
}

func (f *Fetcher) ensureFolder(ctx context.Context, folder string) error {
	name := folder + placeholderBlob
	ok, err := f.processed.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check %s: %w", name, err)
	}
	if ok {
		return nil
	}
	if err := f.processed.Write(ctx, name, "", "text/plain"); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return nil
}

// readRaw returns the content of a raw blob, or "" when it does not exist.
func (f *Fetcher) readRaw(ctx context.Context, name string) (string, error) {
	content, err := f.raw.Read(ctx, name)
	if errors.Is(err, domain.ErrBlobNotFound) {
		f.logger.Debug("raw blob missing, skipping", "blob", name)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return content, nil
}

// nextFreeName returns the first report name at or after *next that does not
// exist yet and advances *next past it.
func (f *Fetcher) nextFreeName(ctx context.Context, folder string, next *int) (string, error) {
	for {
		name := domain.ReportBlobName(folder, *next)
		*next++
		ok, err := f.processed.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
		if !ok {
			return name, nil
		}
	}
}

// SplitPosts splits a social post batch on blank lines, dropping empty chunks.
func SplitPosts(content string) []string {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return nil
	}
	var posts []string
	for _, chunk := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		posts = append(posts, strings.Trim(chunk, "\n"))
	}
	return posts
}
