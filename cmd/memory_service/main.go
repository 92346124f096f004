package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mnemo/internal/config"
	"mnemo/internal/database/kafka"
	"mnemo/internal/database/milvus"
	mongodb "mnemo/internal/database/mongo"
	"mnemo/internal/database/mysql"
	"mnemo/internal/database/neo4j"
	redisdb "mnemo/internal/database/redis"
	"mnemo/internal/embedding"
	"mnemo/internal/llm"
	"mnemo/internal/memory/consumer"
	"mnemo/internal/memory/metrics"
	"mnemo/internal/memory/segmenter"
	"mnemo/internal/memory/service"
	"mnemo/internal/memory/state"
	"mnemo/internal/memory/store"
	"mnemo/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("memory_service", "", "")

	// Initialize database clients
	ctx := context.Background()
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()

	neo4jClient, err := neo4j.GetClient(ctx, &cfg.Databases.Neo4j)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer neo4jClient.Close(ctx)

	redisClient, err := redisdb.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redisdb.Close()

	mysqlDB, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mysql.Close()

	mongoClient, err := mongodb.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mongodb.Close(ctx)
	if err := mongodb.EnsureTextIndex(ctx, &cfg.Databases.MongoDB); err != nil {
		appLogger.Fatal(err.Error())
	}

	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer kafkaClient.Close()

	// Initialize embedding and LLM clients
	embedder, err := embedding.NewOllamaModel(cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	llmClient := llm.NewClient(appLogger)
	llmClient.SetOrder(cfg.LLM.ProviderOrder)
	llmClient.SetDefaultTimeout(time.Duration(cfg.LLM.TimeoutSecs) * time.Second)
	if cfg.LLM.Gemini.Enabled {
		gemini, err := llm.NewGemini(ctx, cfg.LLM.Gemini.Model, cfg.LLM.Gemini.APIKey)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		llmClient.Register("gemini", gemini)
		if cfg.LLM.Gemini.MaxRPS > 0 {
			llmClient.SetRateLimit("gemini", cfg.LLM.Gemini.MaxRPS, cfg.LLM.Gemini.Burst)
		}
	}
	if cfg.LLM.OpenAI.Enabled {
		oa, err := llm.NewOpenAI(cfg.LLM.OpenAI.Model, cfg.LLM.OpenAI.APIKey)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		llmClient.Register("openai", oa)
		if cfg.LLM.OpenAI.MaxRPS > 0 {
			llmClient.SetRateLimit("openai", cfg.LLM.OpenAI.MaxRPS, cfg.LLM.OpenAI.Burst)
		}
	}
	if cfg.LLM.Ollama.Enabled {
		ol, err := llm.NewOllama(cfg.LLM.Ollama.Model, cfg.LLM.Ollama.BaseURL)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		llmClient.Register("ollama", ol)
	}

	// Initialize stores
	factStore, err := store.NewMySQLStore(mysqlDB)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	vecStore, err := store.NewMilvusStore(ctx, milvusClient, embedder)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	graphStore := store.NewNeo4jStore(neo4jClient)
	searchStore := store.NewMongoStore(
		mongoClient.Database(cfg.Databases.MongoDB.Database).Collection(cfg.Databases.MongoDB.Collection))
	storeManager := store.NewManager(vecStore, graphStore, searchStore)

	stateStore := state.NewStore(redisClient, appLogger)

	// Initialize segmentation and the memory service
	seg := segmenter.New(llmClient, cfg.Segmenter, appLogger)
	collector := metrics.NewCollector(appLogger)
	memoryService := service.New(seg, factStore, storeManager, stateStore, collector, appLogger)

	// Initialize and start Kafka consumer
	kafkaConsumer := consumer.New(kafkaClient, memoryService, appLogger)
	kafkaConsumer.Start(ctx)

	appLogger.Info("Memory service started")

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	kafkaConsumer.Stop()
	appLogger.Info("Memory service stopped")
}
