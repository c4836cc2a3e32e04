// Package elastic implements the search executor and document index on
// Elasticsearch.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/olivere/elastic/v7"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/search"
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"vehicle_id":     {"type": "keyword"},
			"ping_ts":        {"type": "date"},
			"stop_id":        {"type": "keyword"},
			"schedu_ts":      {"type": "date"},
			"delay_sec":      {"type": "long"},
			"location":       {"type": "geo_point"},
			"incident_count": {"type": "long"}
		}
	}
}`

// Client reads and writes one Elasticsearch index.
type Client struct {
	client *elastic.Client
	url    string
	index  string
	logger *slog.Logger
}

// NewClient connects to the cluster at url. A non-empty apiKey is sent as an
// "ApiKey" authorization header on every request.
func NewClient(url, apiKey, index string, logger *slog.Logger) (*Client, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if apiKey != "" {
		opts = append(opts, elastic.SetHeaders(http.Header{
			"Authorization": []string{"ApiKey " + apiKey},
		}))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Client{client: client, url: url, index: index, logger: logger}, nil
}

// Index returns the index name.
func (c *Client) Index() string {
	return c.index
}

// CheckReadiness pings the cluster.
func (c *Client) CheckReadiness(ctx context.Context) error {
	if _, _, err := c.client.Ping(c.url).Do(ctx); err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	return nil
}

// EnsureIndex creates the index with the document mapping if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists, err := c.client.IndexExists(c.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", c.index, err)
	}
	if exists {
		return nil
	}

	c.logger.Info("creating search index", "index", c.index)
	if _, err := c.client.CreateIndex(c.index).Body(indexMapping).Do(ctx); err != nil {
		return fmt.Errorf("creating index %s: %w", c.index, err)
	}
	return nil
}

// BulkUpsert indexes docs under their ids, replacing existing documents. It
// returns the number of documents accepted.
func (c *Client) BulkUpsert(ctx context.Context, docs []domain.IndexedDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	bulk := c.client.Bulk()
	for _, d := range docs {
		bulk.Add(elastic.NewBulkIndexRequest().
			Index(c.index).
			Id(d.ID).
			Doc(d.Doc))
	}

	res, err := bulk.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk upsert: %w", err)
	}

	succeeded := len(res.Succeeded())
	if res.Errors {
		failed := res.Failed()
		for _, item := range failed {
			if item.Error != nil {
				c.logger.Warn("document rejected", "id", item.Id, "type", item.Error.Type, "reason", item.Error.Reason)
			}
		}
		first := failed[0]
		reason := ""
		if first.Error != nil {
			reason = first.Error.Reason
		}
		return succeeded, fmt.Errorf("bulk upsert: %d of %d documents rejected, first %s: %s", len(failed), len(docs), first.Id, reason)
	}
	return succeeded, nil
}

// Execute runs a compiled query.
func (c *Client) Execute(ctx context.Context, q search.Query) (search.RawResult, error) {
	res, err := c.client.Search().
		Index(c.index).
		Query(toElastic(q)).
		Size(q.Size).
		TrackTotalHits(true).
		FetchSourceContext(elastic.NewFetchSourceContext(true).Include(q.Source...)).
		Do(ctx)
	if err != nil {
		return search.RawResult{}, err
	}

	raw := search.RawResult{Total: res.TotalHits()}
	if res.Hits != nil {
		raw.Hits = make([]json.RawMessage, 0, len(res.Hits.Hits))
		for _, hit := range res.Hits.Hits {
			raw.Hits = append(raw.Hits, hit.Source)
		}
	}
	return raw, nil
}

func toElastic(q search.Query) *elastic.BoolQuery {
	b := elastic.NewBoolQuery()
	for _, cl := range q.Must {
		b.Must(clause(cl))
	}
	for _, cl := range q.Filter {
		b.Filter(clause(cl))
	}
	return b
}

func clause(c search.Clause) elastic.Query {
	switch c := c.(type) {
	case search.PrefixClause:
		return elastic.NewPrefixQuery(c.Field, c.Value)
	case search.RangeClause:
		r := elastic.NewRangeQuery(c.Field)
		if c.Gte != nil {
			r.Gte(c.Gte)
		}
		if c.Lte != nil {
			r.Lte(c.Lte)
		}
		return r
	case search.GeoBoxClause:
		tl, br := c.Box.TopLeft(), c.Box.BottomRight()
		return elastic.NewGeoBoundingBoxQuery(c.Field).
			TopLeft(tl.Lat, tl.Lon).
			BottomRight(br.Lat, br.Lon)
	default:
		return elastic.NewMatchAllQuery()
	}
}
