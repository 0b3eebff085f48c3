package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/internal/statefile"
	"github.com/vango-dev/reactor/pkg/observability"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/store"
)

// loadConfig reads reactor.json from the config directory, applies the
// environment and flag overrides and validates the result.
func loadConfig(flags *globalFlags, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(flags.configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger and makes it the slog default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := cfg.Log.Logger(w)
	slog.SetDefault(logger)
	return logger
}

// telemetry registers the CLI sinks and combines the named observers.
// Unknown names are an error.
func telemetry(logger *slog.Logger, registry prometheus.Registerer, names []string) (observability.Observer, error) {
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	if registry != nil {
		observability.RegisterObserver("prometheus", observability.NewPrometheusObserver(observability.WithRegistry(registry)))
	}
	observability.RegisterObserver("trace", observability.NewTraceObserver("reactor"))

	var sinks []observability.Observer
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, errors.New("R102").
				WithField("--telemetry").
				WithDetail(err.Error()).
				WithSuggestion("Available: " + strings.Join(observability.ObserverNames(), ", "))
		}
		sinks = append(sinks, obs)
	}
	switch len(sinks) {
	case 0:
		return observability.NoOpObserver{}, nil
	case 1:
		return sinks[0], nil
	}
	return observability.NewMultiObserver(sinks...), nil
}

// loadState reads the configured state file.
func loadState(cfg *config.Config) (map[string]any, error) {
	path := cfg.StatePath()
	values, err := statefile.Load(path)
	switch {
	case err == nil:
		return values, nil
	case stderrors.Is(err, os.ErrNotExist):
		return nil, errors.New("R200").
			WithDetail("No state file at " + path).
			WithSuggestion("Set state.file in reactor.json or REACTOR_STATE")
	case stderrors.Is(err, statefile.ErrUnsupportedFormat):
		return nil, errors.New("R202").WithField("state.file").Wrap(err)
	}
	return nil, errors.New("R201").WithDetail(err.Error()).Wrap(err)
}

// newStore builds a store over the configured state with the built-in
// mutations registered.
func newStore(cfg *config.Config, logger *slog.Logger, obs observability.Observer) (*store.Store, error) {
	values, err := loadState(cfg)
	if err != nil {
		return nil, err
	}

	var stateOpts []reactive.Option
	if cfg.State.Duplicates {
		stateOpts = append(stateOpts, reactive.WithDuplicateRegistrations())
	}

	st, err := store.New(store.Options{
		State:        func() map[string]any { return values },
		Mutations:    store.Builtins(),
		Logger:       logger,
		Telemetry:    obs,
		StateOptions: stateOpts,
	})
	if err != nil {
		return nil, errors.New("R201").WithDetail(err.Error()).Wrap(err)
	}
	return st, nil
}

// newPersister builds the configured snapshot backend.
func newPersister(cfg *config.Config, getenv func(string) string) store.Persister {
	if cfg.Snapshot.Backend != config.BackendS3 {
		return store.NewFilePersister(cfg.SnapshotDir())
	}
	return store.NewS3Persister(newS3Client(cfg.Snapshot, getenv), cfg.Snapshot.Bucket, cfg.Snapshot.Prefix)
}

// newS3Client builds an S3 client from the snapshot settings. Credentials
// and a missing region come from the standard AWS environment variables.
func newS3Client(sc config.SnapshotConfig, getenv func(string) string) *s3.Client {
	region := sc.Region
	if region == "" {
		region = getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: sc.PathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return envCredentials(getenv)
		})),
	}
	if sc.Endpoint != "" {
		opts.BaseEndpoint = aws.String(sc.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials(getenv func(string) string) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    getenv("AWS_SESSION_TOKEN"),
		Source:          "EnvironmentVariables",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("R301").
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 backend")
	}
	return creds, nil
}

// snapshotError maps persister failures onto CLI errors.
func snapshotError(name string, err error) error {
	if stderrors.Is(err, store.ErrSnapshotNotFound) {
		return errors.New("R300").WithDetail("No snapshot named " + name).Wrap(err)
	}
	return errors.New("R301").WithDetail(err.Error()).Wrap(err)
}
