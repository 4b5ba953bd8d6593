package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/kv/dynamokv"
	"github.com/jacentio/itinera/kv/pebblekv"
)

// DynamoClient builds a DynamoDB client from the AWS shared configuration,
// using AWSProfile when set.
func DynamoClient(ctx context.Context, c Config) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if c.AWSProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.AWSProfile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// OpenBackend opens the configured kv.Store. The returned close function
// releases it and is never nil.
func OpenBackend(ctx context.Context, c Config, logger *slog.Logger) (kv.Store, func() error, error) {
	nop := func() error { return nil }
	if logger == nil {
		logger = slog.Default()
	}

	switch c.Backend {
	case BackendDynamoDB:
		client, err := DynamoClient(ctx, c)
		if err != nil {
			return nil, nop, err
		}
		return dynamokv.New(client, c.DynamoDB), nop, nil
	case BackendPebble:
		s, err := pebblekv.Open(c.PebblePath, nil, pebblekv.WithLogger(logger))
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case BackendMemory:
		return kv.NewMemory(), nop, nil
	default:
		return nil, nop, fmt.Errorf("settings: unknown backend %q", c.Backend)
	}
}
