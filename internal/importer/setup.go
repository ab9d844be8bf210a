package importer

import (
	"context"
	"fmt"

	gsheet "google.golang.org/api/sheets/v4"

	"taxledger/internal/config"
	"taxledger/internal/log"
	"taxledger/internal/services"
)

// FromConfig wires fetchers and the extractor selected by IMPORT_EXTRACTOR.
// With the "none" extractor no Google client is created. The returned
// cleanup closes the bucket client.
func FromConfig(ctx context.Context, cfg *config.Config, lookup Lookup, recorder TransactionRecorder, pub services.EventPublisher, logger *log.Logger) (*Service, func(), error) {
	opts := []Option{WithTimeout(cfg.ImportTimeout)}
	if pub != nil {
		opts = append(opts, WithPublisher(pub))
	}
	cleanup := func() {}

	if cfg.ImportExtractor == "none" {
		return NewService(lookup, recorder, logger, opts...), cleanup, nil
	}

	switch cfg.ImportExtractor {
	case "gemini":
		ext, err := NewGeminiExtractor(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, WithExtractor(ext))
	case "openai":
		opts = append(opts, WithExtractor(NewOpenAIExtractor(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)))
	default:
		return nil, cleanup, fmt.Errorf("unknown import extractor %q", cfg.ImportExtractor)
	}

	gcsOpts, err := GoogleOptions(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, cleanup, err
	}
	gcs, err := NewGCSFetcher(ctx, gcsOpts...)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() { _ = gcs.Close() }
	opts = append(opts, WithFetcher(SchemeGCS, gcs))

	sheetOpts, err := GoogleOptions(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, cleanup, err
	}
	sheets, err := NewSheetsFetcher(ctx, sheetOpts...)
	if err != nil {
		return nil, cleanup, err
	}
	opts = append(opts, WithFetcher(SchemeSheets, sheets))

	return NewService(lookup, recorder, logger, opts...), cleanup, nil
}
