package export

import (
	"context"
	"fmt"
	"net/http"

	"github.com/olivere/elastic/v7"

	"placesweep/internal/store"
)

// placesMapping makes location a geo_point so indexed places can be sorted
// and filtered by distance.
const placesMapping = `{
	"mappings": {
		"properties": {
			"id":       {"type": "keyword"},
			"title":    {"type": "text"},
			"location": {"type": "geo_point"},
			"scraped":  {"type": "double"}
		}
	}
}`

// ElasticConfig configures the Elasticsearch sink.
type ElasticConfig struct {
	URL        string
	Index      string
	BatchSize  int
	HTTPClient *http.Client
}

// Elastic bulk-indexes places, one document per place id.
type Elastic struct {
	client    *elastic.Client
	url       string
	index     string
	batchSize int
}

// NewElastic connects to the cluster at cfg.URL. Sniffing and health checks
// are off; a single node behind a proxy is the common case.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	if cfg.Index == "" {
		cfg.Index = "places"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, elastic.SetHttpClient(cfg.HTTPClient))
	}
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Elastic{client: client, url: cfg.URL, index: cfg.Index, batchSize: cfg.BatchSize}, nil
}

// Name implements Writer.
func (e *Elastic) Name() string { return "elastic" }

// Export implements Writer. base is ignored.
func (e *Elastic) Export(ctx context.Context, src Source, _ string) (Result, error) {
	if err := e.ensureIndex(ctx); err != nil {
		return Result{}, err
	}

	bulk := e.client.Bulk().Index(e.index)
	n := 0
	flush := func() error {
		if bulk.NumberOfActions() == 0 {
			return nil
		}
		resp, err := bulk.Do(ctx)
		if err != nil {
			return fmt.Errorf("bulk request failed: %w", err)
		}
		if resp.Errors {
			for _, item := range resp.Failed() {
				if item.Error != nil {
					return fmt.Errorf("failed to index %s: %s", item.Id, item.Error.Reason)
				}
			}
			return fmt.Errorf("bulk request reported errors")
		}
		return nil
	}

	err := src.Each(ctx, func(r store.Record) error {
		doc, err := document(r)
		if err != nil {
			return err
		}
		bulk.Add(elastic.NewBulkIndexRequest().Id(r.ID).Doc(doc))
		n++
		if bulk.NumberOfActions() >= e.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if err := flush(); err != nil {
		return Result{}, err
	}
	return Result{Format: e.Name(), Target: e.url + "/" + e.index, Count: n}, nil
}

func (e *Elastic) ensureIndex(ctx context.Context) error {
	exists, err := e.client.IndexExists(e.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", e.index, err)
	}
	if exists {
		return nil
	}
	if _, err := e.client.CreateIndex(e.index).BodyString(placesMapping).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.index, err)
	}
	return nil
}

// document is the stored object plus a geo_point location.
func document(r store.Record) (map[string]any, error) {
	doc, err := r.Map()
	if err != nil {
		return nil, err
	}
	p, err := r.Place()
	if err != nil {
		return nil, err
	}
	if p.HasPosition() {
		doc["location"] = elastic.GeoPointFromLatLon(p.Lat(), p.Lng())
	}
	return doc, nil
}
