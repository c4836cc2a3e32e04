package search

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// RawResult is what the search backend returned for one query: the engine's
// total match count and the stored source of each hit, in rank order.
type RawResult struct {
	Total int64
	Hits  []json.RawMessage
}

// Response is the external search response body.
type Response struct {
	Total   int64             `json:"total"`
	Results []domain.Document `json:"results"`
}

// Project maps raw hits to documents. Total is passed through and may exceed
// len(Results) when the query was size-capped.
func Project(raw RawResult) (Response, error) {
	resp := Response{
		Total:   raw.Total,
		Results: make([]domain.Document, 0, len(raw.Hits)),
	}
	for i, hit := range raw.Hits {
		var doc domain.Document
		if err := json.Unmarshal(hit, &doc); err != nil {
			return Response{}, fmt.Errorf("decode hit %d: %w", i, err)
		}
		resp.Results = append(resp.Results, doc)
	}
	return resp, nil
}
