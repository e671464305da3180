package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

// batchJob is one entry of a batch file
type batchJob struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Body    any               `json:"body"`
	Headers map[string]string `json:"headers"`
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many API calls through batch/run",
	Long: `Run the calls listed in a JSON file through the batch endpoint. The file
holds an array of {"method", "path", "body", "headers"} objects; method
defaults to POST. Calls are sent in chunks of 200 and the results are
printed in the order of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs, err := loadBatchJobs(args[0])
	if err != nil {
		return err
	}

	b := geoloqi.NewBatch(session)
	if err := queueJobs(b, jobs); err != nil {
		return err
	}

	logger.Info().Int("jobs", b.Len()).Msg("Running batch")

	ctx := context.Background()
	results, err := b.Run(ctx)
	persistAuth()
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	return printJSON(results)
}

func loadBatchJobs(path string) ([]batchJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var jobs []batchJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	return jobs, nil
}

func queueJobs(b *geoloqi.Batch, jobs []batchJob) error {
	for i, job := range jobs {
		if job.Path == "" {
			return fmt.Errorf("batch job %d has no path", i)
		}

		switch strings.ToUpper(job.Method) {
		case "", http.MethodPost:
			b.QueuePost(job.Path, job.Body, job.Headers)
		case http.MethodGet:
			if err := b.QueueGet(job.Path, job.Body, job.Headers); err != nil {
				return fmt.Errorf("batch job %d: %w", i, err)
			}
		default:
			return fmt.Errorf("batch job %d: unsupported method %s", i, job.Method)
		}
	}
	return nil
}
