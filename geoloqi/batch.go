package geoloqi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/sync/errgroup"
)

// PerRequestLimit is the most jobs the server accepts in one batch request.
const PerRequestLimit = 200

// BatchJob is one queued call inside a batch request.
type BatchJob struct {
	RelativeURL string            `json:"relative_url"`
	Body        any               `json:"body"`
	Headers     map[string]string `json:"headers"`
}

// BatchHeader is one response header of a batched call
type BatchHeader struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// BatchResult is the outcome of one batched call, in submission order.
type BatchResult struct {
	Code    int           `mapstructure:"code"`
	Headers []BatchHeader `mapstructure:"headers"`
	Body    any           `mapstructure:"body"`
	TimeMS  float64       `mapstructure:"time_ms"`
}

// Batch queues API calls and sends them as batch/run requests.
//
//	results, err := session.Batch(ctx, func(b *geoloqi.Batch) {
//		b.QueuePost("layer/create", map[string]any{"name": "Test 1"}, nil)
//		b.QueuePost("layer/create", map[string]any{"name": "Test 2"}, nil)
//	})
type Batch struct {
	session *Session
	jobs    []BatchJob
}

// NewBatch creates an empty batch bound to a session.
func NewBatch(session *Session) *Batch {
	return &Batch{session: session}
}

// QueuePost queues a POST call.
func (b *Batch) QueuePost(path string, body any, headers map[string]string) {
	b.queue(path, body, headers)
}

// QueueGet queues a GET call. The query is encoded onto the relative URL.
func (b *Batch) QueueGet(path string, query any, headers map[string]string) error {
	params, err := queryParams(query)
	if err != nil {
		return err
	}
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	b.queue(path, nil, headers)
	return nil
}

func (b *Batch) queue(path string, body any, headers map[string]string) {
	if headers == nil {
		headers = map[string]string{}
	}
	b.jobs = append(b.jobs, BatchJob{RelativeURL: path, Body: body, Headers: headers})
}

// Len returns the number of queued jobs
func (b *Batch) Len() int {
	return len(b.jobs)
}

// Run sends the queued jobs in chunks of PerRequestLimit and returns all
// results in submission order. The queue is empty afterwards.
func (b *Batch) Run(ctx context.Context) ([]BatchResult, error) {
	jobs := b.jobs
	b.jobs = nil

	if len(jobs) == 0 {
		return []BatchResult{}, nil
	}

	var chunks [][]BatchJob
	for start := 0; start < len(jobs); start += PerRequestLimit {
		end := min(start+PerRequestLimit, len(jobs))
		chunks = append(chunks, jobs[start:end])
	}

	limit := b.session.config.BatchConcurrency
	if limit < 1 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	// indexed by chunk so order never depends on completion order
	results := make([][]BatchResult, len(chunks))
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := b.post(ctx, chunk)
			if err != nil {
				return fmt.Errorf("batch chunk %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	flat := make([]BatchResult, 0, len(jobs))
	for _, res := range results {
		flat = append(flat, res...)
	}

	b.session.log().Debug().
		Int("jobs", len(jobs)).
		Int("requests", len(chunks)).
		Msg("Batch completed")
	return flat, nil
}

func (b *Batch) post(ctx context.Context, chunk []BatchJob) ([]BatchResult, error) {
	body := bodyFunc(func() any {
		return map[string]any{
			"access_token": b.session.AccessToken(),
			"batch":        chunk,
		}
	})

	value, _, err := b.session.run(ctx, http.MethodPost, batchPath, body, nil)
	if err != nil {
		return nil, err
	}

	m, _ := value.(map[string]any)
	raw, ok := m["result"].([]any)
	if !ok {
		return nil, ErrBatchResult
	}

	var out []BatchResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode batch results: %w", err)
	}
	return out, nil
}
