package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/giygas/mhra-extractor/config"
	"github.com/giygas/mhra-extractor/mhraparser"
	"github.com/giygas/mhra-extractor/scheduler"
	"github.com/giygas/mhra-extractor/snapshot"
	"github.com/giygas/mhra-extractor/validation"
)

// buildPipeline wires the collaborators of a run from c. The returned close
// function releases the page source and the storage client.
func buildPipeline(ctx context.Context, c *config.Config) (scheduler.Pipeline, func() error, error) {
	extractor, err := mhraparser.NewExtractor(c, nil)
	if err != nil {
		return scheduler.Pipeline{}, nil, err
	}

	pipeline := scheduler.Pipeline{
		Extractor: extractor,
		Validator: validation.NewCatalogValidator(),
		Writer:    snapshot.NewWriter(c.OutputDir, c.BaseURL),
	}
	closers := []func() error{extractor.Close}

	if c.UploadEnabled {
		uploader, err := snapshot.NewGCSUploader(ctx, snapshot.UploaderOptions{
			Bucket:          c.UploadBucket,
			Prefix:          c.UploadPrefix,
			CredentialsFile: c.UploadCredentials,
		})
		if err != nil {
			extractor.Close()
			return scheduler.Pipeline{}, nil, fmt.Errorf("failed to set up upload: %w", err)
		}
		pipeline.Uploader = uploader
		closers = append(closers, uploader.Close)
	}

	closeAll := func() error {
		var errs []error
		for _, fn := range closers {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}
	return pipeline, closeAll, nil
}
