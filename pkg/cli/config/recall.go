package config

import (
	"time"

	"github.com/memori-lab/memoriai/pkg/service/recall"
	"github.com/urfave/cli/v3"
)

// Recall holds tuning knobs for the recall pipeline
type Recall struct {
	topK             int
	maxQueryLen      int
	inferenceTimeout time.Duration
	retryBackoff     time.Duration
}

// Flags returns CLI flags for recall pipeline configuration
func (r *Recall) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "recall-top-k",
			Usage:       "Number of memory fragments retrieved per recall",
			Value:       recall.DefaultTopK,
			Category:    "Recall",
			Sources:     cli.EnvVars("MEMORIAI_RECALL_TOP_K"),
			Destination: &r.topK,
		},
		&cli.IntFlag{
			Name:        "recall-max-query-len",
			Usage:       "Maximum recall question length in bytes",
			Value:       recall.DefaultMaxQueryLen,
			Category:    "Recall",
			Sources:     cli.EnvVars("MEMORIAI_RECALL_MAX_QUERY_LEN"),
			Destination: &r.maxQueryLen,
		},
		&cli.DurationFlag{
			Name:        "recall-inference-timeout",
			Usage:       "Timeout for a single LLM inference attempt",
			Value:       recall.DefaultInferenceTimeout,
			Category:    "Recall",
			Sources:     cli.EnvVars("MEMORIAI_RECALL_INFERENCE_TIMEOUT"),
			Destination: &r.inferenceTimeout,
		},
		&cli.DurationFlag{
			Name:        "recall-retry-backoff",
			Usage:       "Backoff before the single inference retry",
			Value:       recall.DefaultRetryBackoff,
			Category:    "Recall",
			Sources:     cli.EnvVars("MEMORIAI_RECALL_RETRY_BACKOFF"),
			Destination: &r.retryBackoff,
		},
	}
}

// Config returns the recall pipeline configuration built from the flags
func (r *Recall) Config() recall.Config {
	return recall.Config{
		TopK:             r.topK,
		MaxQueryLen:      r.maxQueryLen,
		InferenceTimeout: r.inferenceTimeout,
		RetryBackoff:     r.retryBackoff,
	}
}
