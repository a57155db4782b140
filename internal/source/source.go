// Package source ingests data points from local files and remote endpoints.
// Each source produces a batch of records per pipeline cycle; the pipeline
// fans out over all configured sources concurrently.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/model"
)

// Source yields a batch of data points on each fetch.
type Source interface {
	// Name identifies the source in logs and events.
	Name() string

	// Fetch returns the current batch. An empty batch is not an error.
	Fetch(ctx context.Context) ([]model.DataPoint, error)
}

// FromConfig builds sources from configuration.
func FromConfig(cfgs []config.SourceConfig) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Type {
		case "", "file":
			if c.Path == "" {
				return nil, eris.Errorf("source %q: file source requires a path", c.Name)
			}
			sources = append(sources, NewFile(c.Name, c.Path))
		case "http":
			if c.URL == "" {
				return nil, eris.Errorf("source %q: http source requires a url", c.Name)
			}
			sources = append(sources, NewHTTP(c.Name, c.URL, HTTPOptions{}))
		case "ftp":
			if c.URL == "" {
				return nil, eris.Errorf("source %q: ftp source requires a url", c.Name)
			}
			sources = append(sources, NewFTP(c.Name, c.URL, FTPOptions{}))
		default:
			return nil, eris.Errorf("source %q: unknown type %q", c.Name, c.Type)
		}
	}
	return sources, nil
}
