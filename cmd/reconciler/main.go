// Command reconciler is the AWS Lambda function attached to the trip table's
// DynamoDB stream. It keeps trip indexes, pending deletes and summaries in
// step with writes that bypass the store.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/itinera/internal/settings"
	"github.com/jacentio/itinera/kv/dynamokv"
	"github.com/jacentio/itinera/store"
	"github.com/jacentio/itinera/stream"
)

func main() {
	ctx := context.Background()

	cfg, err := settings.Load(os.Getenv("ITINERA_CONFIG"))
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	logger, err := settings.NewLogger(os.Stdout, cfg.Log)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}

	client, err := settings.DynamoClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	backend := dynamokv.New(client, cfg.DynamoDB)
	s := store.New(backend, cfg.Store, store.WithLogger(logger))

	handler := stream.NewHandler(s, logger)
	lambda.Start(handler.HandleStream)
}
