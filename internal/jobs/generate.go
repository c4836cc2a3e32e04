package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// Raw blob names written by the generator and read by the fetcher.
const (
	NewsBlob   = "news.txt"
	TweetsBlob = "tweets.txt"
)

const (
	minTweets    = 5
	maxTweets    = 10
	maxTweetSkew = 14 * time.Minute
)

// GeneratorConfig holds the settings of a Generator.
type GeneratorConfig struct {
	StopsPath   string
	MaxSeverity int
}

// Generator writes a synthetic news report and a batch of social posts about
// random stops into the raw bucket, replacing the previous pair.
type Generator struct {
	gtfs   domain.BlobStore
	raw    domain.BlobStore
	cfg    GeneratorConfig
	clock  clockwork.Clock
	rng    *Rand
	logger *slog.Logger
}

// NewGenerator creates a Generator reading stops from gtfs and writing to raw.
func NewGenerator(gtfs, raw domain.BlobStore, cfg GeneratorConfig, clock clockwork.Clock, rng *Rand, logger *slog.Logger) *Generator {
	return &Generator{gtfs: gtfs, raw: raw, cfg: cfg, clock: clock, rng: rng, logger: logger}
}

func (g *Generator) Name() string { return GenerateIncidents }

// Run writes news.txt and tweets.txt. The count is the number of reports
// generated.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	stops, err := LoadStopNames(ctx, g.gtfs, g.cfg.StopsPath)
	if err != nil {
		return Result{}, err
	}

	news := g.News(stops)
	tweets, n := g.Tweets(stops)

	if err := g.raw.Write(ctx, NewsBlob, news, "text/plain"); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", NewsBlob, err)
	}
	if err := g.raw.Write(ctx, TweetsBlob, tweets, "text/plain"); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", TweetsBlob, err)
	}

	g.logger.Info("incidents generated", "stops", len(stops), "tweets", n)
	return Result{Count: n + 1, Message: "Incidents generated"}, nil
}

// News renders one news report about a random stop.
func (g *Generator) News(stops []string) string {
	stop := stops[g.rng.IntN(len(stops))]
	severity := g.rng.IntRange(1, g.cfg.MaxSeverity)
	return fmt.Sprintf("Title: Incident at %s\nIncident: A random event occurred near %s.\nSeverity: %d\nTime: %s\n",
		stop, stop, severity, domain.FormatTimestamp(g.clock.Now()))
}

// Tweets renders between 5 and 10 social posts separated by blank lines and
// returns them with their count. Post times are jittered up to 14 minutes
// into the past.
func (g *Generator) Tweets(stops []string) (string, int) {
	n := g.rng.IntRange(minTweets, maxTweets)
	now := g.clock.Now()

	posts := make([]string, 0, n)
	for range n {
		stop := stops[g.rng.IntN(len(stops))]
		skew := time.Duration(g.rng.IntN(int(maxTweetSkew/time.Second)+1)) * time.Second
		posts = append(posts, fmt.Sprintf("tweet: Traffic buildup at %s\ntime: %s",
			stop, domain.FormatTimestamp(now.Add(-skew))))
	}
	return strings.Join(posts, "\n\n") + "\n", n
}

// LoadStopNames returns the distinct non-empty stop_name values of the GTFS
// stops file, in file order.
func LoadStopNames(ctx context.Context, store domain.BlobStore, path string) ([]string, error) {
	t, err := readTable(ctx, store, path)
	if err != nil {
		return nil, err
	}
	if err := t.require("stop_name"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(t.rows))
	var names []string
	for _, row := range t.rows {
		name := t.get(row, "stop_name")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.New(path + ": no stop names")
	}
	return names, nil
}
