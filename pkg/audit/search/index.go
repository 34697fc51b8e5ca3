// Package search indexes audit records in a Bleve full-text index so an
// operator can query pool history by free text on Detail ("why did worker
// 7 exit") instead of scanning the whole chain or the Postgres table.
package search

import (
	"fmt"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/nullstacklabs/execpool/pkg/audit"
)

// Index wraps a Bleve index and implements audit.Sink, so it can be
// attached directly to an audit.Chain alongside (or instead of) a
// postgres.Store.
type Index struct {
	bleveIndex bleve.Index
}

// Open opens the Bleve index at path, creating it with a mapping tuned
// for audit records if it doesn't exist yet.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{bleveIndex: idx}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("search: failed to open index: %w", err)
	}

	idx, err = bleve.New(path, recordMapping())
	if err != nil {
		return nil, fmt.Errorf("search: failed to create index: %w", err)
	}
	return &Index{bleveIndex: idx}, nil
}

func recordMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	recordDoc := bleve.NewDocumentMapping()

	eventTypeField := bleve.NewTextFieldMapping()
	eventTypeField.Store = true
	eventTypeField.Analyzer = "keyword"
	recordDoc.AddFieldMappingsAt("event_type", eventTypeField)

	detailField := bleve.NewTextFieldMapping()
	detailField.Store = true
	recordDoc.AddFieldMappingsAt("detail", detailField)

	timeField := bleve.NewDateTimeFieldMapping()
	timeField.Store = true
	recordDoc.AddFieldMappingsAt("time", timeField)

	im.AddDocumentMapping("audit_record", recordDoc)
	im.DefaultType = "audit_record"
	return im
}

// Append implements audit.Sink, indexing rec under its sequence number so
// re-indexing the same record (e.g. after a postgres replay) overwrites
// rather than duplicates.
func (idx *Index) Append(rec audit.Record) {
	doc := map[string]interface{}{
		"event_type": rec.TypeName(),
		"detail":     rec.Detail,
		"time":       rec.Time,
	}
	_ = idx.bleveIndex.Index(strconv.FormatUint(rec.SeqNo, 10), doc)
}

// Close releases the underlying index files.
func (idx *Index) Close() error {
	return idx.bleveIndex.Close()
}

// Hit is a single search match, reduced from Bleve's richer result to the
// fields an admin query cares about.
type Hit struct {
	SeqNo     uint64
	EventType string
	Detail    string
	Time      time.Time
	Score     float64
}

// Search runs a free-text query (Bleve query-string syntax, e.g.
// `event_type:worker_suicide detail:timeout`) and returns up to limit
// hits ordered by relevance.
func (idx *Index) Search(query string, limit int) ([]Hit, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"event_type", "detail", "time"}

	result, err := idx.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: query failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		seqNo, _ := strconv.ParseUint(h.ID, 10, 64)
		hit := Hit{SeqNo: seqNo, Score: h.Score}
		if et, ok := h.Fields["event_type"].(string); ok {
			hit.EventType = et
		}
		if d, ok := h.Fields["detail"].(string); ok {
			hit.Detail = d
		}
		if ts, ok := h.Fields["time"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				hit.Time = parsed
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
