package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/putd/internal/logger"
	"github.com/marmos91/putd/pkg/journal"
	journalBadger "github.com/marmos91/putd/pkg/journal/badger"
	journalCSV "github.com/marmos91/putd/pkg/journal/csv"
	"github.com/marmos91/putd/pkg/journal/samples"
	promMetrics "github.com/marmos91/putd/pkg/metrics/prometheus"
	"github.com/marmos91/putd/pkg/store"
	storeFs "github.com/marmos91/putd/pkg/store/fs"
	storeMemory "github.com/marmos91/putd/pkg/store/memory"
	storeS3 "github.com/marmos91/putd/pkg/store/s3"
)

// CreateStore creates the storage root based on configuration.
//
// The Type field selects the implementation; the matching type-specific map
// is decoded into that implementation's options.
//
// Supported types:
//   - "filesystem": pkg/store/fs (directory on local disk, created if missing)
//   - "memory": pkg/store/memory (ephemeral, optional size cap)
//   - "s3": pkg/store/s3 (Amazon S3 or compatible storage)
//
// Call InitializeMetrics first so the S3 store registers its operation
// metrics.
func CreateStore(ctx context.Context, cfg *StorageConfig) (store.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStore(ctx, cfg.Filesystem)
	case "memory":
		return createMemoryStore(ctx, cfg.Memory)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// createFilesystemStore creates a filesystem-based store.
func createFilesystemStore(ctx context.Context, options map[string]any) (store.Store, error) {
	type FilesystemStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem storage config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem storage: path is required")
	}

	st, err := storeFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	logger.Info("Filesystem storage initialized: path=%s", st.BasePath())
	return st, nil
}

// createMemoryStore creates an in-memory store.
func createMemoryStore(ctx context.Context, options map[string]any) (store.Store, error) {
	type MemoryStoreConfig struct {
		MaxSizeBytes uint64 `mapstructure:"max_size_bytes"`
	}

	var storeCfg MemoryStoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &storeCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode memory storage config: %w", err)
	}

	st, err := storeMemory.New(ctx, storeCfg.MaxSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory storage: %w", err)
	}

	logger.Info("Memory storage initialized: max_size_bytes=%d", storeCfg.MaxSizeBytes)
	return st, nil
}

// createS3Store creates an S3-based store.
func createS3Store(ctx context.Context, options map[string]any) (store.Store, error) {
	type S3StoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
		SpoolDir        string `mapstructure:"spool_dir"`
	}

	var storeCfg S3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 storage: bucket is required")
	}

	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 storage: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Default to 10 attempts (AWS default is 3)
	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Store
	// ========================================================================

	st, err := storeS3.New(ctx, storeS3.S3StoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		SpoolDir:  storeCfg.SpoolDir,
		Metrics:   promMetrics.NewS3Metrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 storage: %w", err)
	}

	logger.Info("S3 storage initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return st, nil
}

// CreateJournal creates the transfer journal based on configuration.
//
// Supported types:
//   - "none": records are dropped
//   - "csv": pkg/journal/csv (completed transfers, client_log.csv layout)
//   - "badger": pkg/journal/badger (every outcome, queryable)
//
// When samples are enabled, a pkg/journal/samples sink is chained after the
// main one. The returned sink must be closed by the caller.
func CreateJournal(ctx context.Context, cfg *JournalConfig) (journal.Sink, error) {
	var sinks journal.MultiSink

	switch cfg.Type {
	case "none":
	case "csv":
		sink, err := createCSVJournal(cfg.CSV)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	case "badger":
		sink, err := OpenBadgerJournal(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	default:
		return nil, fmt.Errorf("unknown journal type: %q (supported: none, csv, badger)", cfg.Type)
	}

	if cfg.Samples.Enabled {
		sink, err := samples.New(cfg.Samples.Dir)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		logger.Info("TCP_INFO sample dumps enabled: dir=%s", cfg.Samples.Dir)
	}

	switch len(sinks) {
	case 0:
		return journal.NoopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// createCSVJournal opens the CSV journal.
func createCSVJournal(options map[string]any) (journal.Sink, error) {
	path, err := csvJournalPath(options)
	if err != nil {
		return nil, err
	}

	sink, err := journalCSV.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv journal: %w", err)
	}

	logger.Info("CSV journal initialized: path=%s", path)
	return sink, nil
}

// CSVJournalPath returns the configured CSV journal file, for readers such
// as the journal inspection command.
func CSVJournalPath(cfg *JournalConfig) (string, error) {
	return csvJournalPath(cfg.CSV)
}

func csvJournalPath(options map[string]any) (string, error) {
	type CSVJournalConfig struct {
		Path string `mapstructure:"path"`
	}

	var journalCfg CSVJournalConfig
	if err := mapstructure.Decode(options, &journalCfg); err != nil {
		return "", fmt.Errorf("failed to decode csv journal config: %w", err)
	}

	if journalCfg.Path == "" {
		return "", fmt.Errorf("csv journal: path is required")
	}
	return journalCfg.Path, nil
}

// OpenBadgerJournal opens the Badger journal regardless of the selected
// journal type. Used by the server and by the journal inspection command.
func OpenBadgerJournal(ctx context.Context, cfg *JournalConfig) (*journalBadger.Sink, error) {
	var journalCfg journalBadger.Config
	if err := mapstructure.Decode(cfg.Badger, &journalCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger journal config: %w", err)
	}

	if journalCfg.DBPath == "" {
		return nil, fmt.Errorf("badger journal: db_path is required")
	}

	sink, err := journalBadger.Open(ctx, journalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger journal: %w", err)
	}

	logger.Info("Badger journal initialized: db_path=%s", journalCfg.DBPath)
	return sink, nil
}
