package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/storage"
	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	oai "github.com/OFFIS-RIT/kgraph/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/kgraph/pkg/ai/openai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/kgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Storage:        pgxstore.NewGraphDBStorageWithConnection(pgConn),
		HopRelationCap: util.GetEnvInt("GRAPH_HOP_RELATION_CAP", 50),
	})
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	handler := &queue.BuildHandler{
		Graph:   graphClient,
		Locks:   leaselock.New(pgConn),
		LockTTL: util.GetEnvDuration("GRAPH_LOCK_TTL", 10*time.Minute),
	}

	aiClient := newAIClient()
	if aiClient != nil {
		handler.Summarize = &graph.SummarizeParams{
			Client:   aiClient,
			Parallel: util.GetEnvInt("AI_PARALLEL_REQ", 4),
		}
	}

	// Init s3 client
	if storage.Enabled() {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		handler.Snapshot = func(ctx context.Context, snapshot *common.Snapshot) error {
			key, err := storage.PutSnapshot(ctx, s3Client, snapshot)
			if err != nil {
				return err
			}
			logger.Info("Stored graph snapshot", "tenant_id", snapshot.TenantID, "key", key)
			return nil
		}
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// prefetch=1: one build at a time per worker, the lease lock covers
	// multiple workers
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func() {
			consumerTag := fmt.Sprintf("%s_consumer", queueName)
			msgs, err := consumerCh.Consume(
				queueName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", queueName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", queueName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", queueName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: queueName}
				}
			}
		}()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.BuildQueue:
					processingErr = handler.ProcessBuildMessage(ctx, string(qm.msg.Body))
				default:
					processingErr = fmt.Errorf("no handler for queue %s", qm.queueName)
				}

				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				if aiClient != nil {
					metrics := aiClient.GetMetrics()
					logger.Info(
						"AI Metrics",
						"input_tokens", metrics.InputTokens,
						"output_tokens", metrics.OutputTokens,
						"total_tokens", metrics.TotalTokens,
						"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
					)
					aiClient.ResetMetrics()
				}

				logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

// newAIClient returns nil when community summaries are not configured.
func newAIClient() ai.GraphAIClient {
	model := util.GetEnv("AI_SUMMARY_MODEL")
	if model == "" {
		logger.Info("AI_SUMMARY_MODEL not set, community summaries disabled")
		return nil
	}

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			SummaryModel:          model,
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			SummaryModel: model,
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		})
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
