package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/memori-lab/memoriai/pkg/service/index"
	"github.com/urfave/cli/v3"
)

// Index holds configuration for the embedding index
type Index struct {
	dimension int
}

// Flags returns CLI flags for embedding index configuration
func (x *Index) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Dimensionality of embedding vectors",
			Value:       768,
			Category:    "Index",
			Sources:     cli.EnvVars("MEMORIAI_EMBEDDING_DIMENSION"),
			Destination: &x.dimension,
		},
	}
}

// Dimension returns the configured embedding dimensionality
func (x *Index) Dimension() int {
	return x.dimension
}

// Configure creates a new embedding index with the configured dimensionality
func (x *Index) Configure() (*index.Index, error) {
	idx, err := index.New(x.dimension)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding index")
	}
	return idx, nil
}
