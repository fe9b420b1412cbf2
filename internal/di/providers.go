package di

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aihub/support-portal/internal/config"
	"github.com/aihub/support-portal/internal/corpus"
	"github.com/aihub/support-portal/internal/database"
	"github.com/aihub/support-portal/internal/ingest"
	"github.com/aihub/support-portal/internal/kafka"
	"github.com/aihub/support-portal/internal/logger"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Resources 收集需要在退出时释放的连接，以及需要健康检查的组件
type Resources struct {
	Health  *database.HealthChecker
	logger  *logrus.Logger
	closers []func() error
	mu      sync.Mutex
}

func newResources() *Resources {
	hcLogger := &logrus.Logger{
		Out:       os.Stdout,
		Formatter: &logrus.JSONFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	return &Resources{Health: database.NewHealthChecker(hcLogger), logger: hcLogger}
}

// OnClose 注册释放函数，Close时按注册的逆序执行
func (r *Resources) OnClose(fn func() error) {
	r.mu.Lock()
	r.closers = append(r.closers, fn)
	r.mu.Unlock()
}

// Close 释放所有资源，返回第一个错误
func (r *Resources) Close() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Storage 知识库所在的关系库连接，按rag.corpus_backend只打开其一
type Storage struct {
	Backend string
	Gorm    *gorm.DB
	SQL     *sql.DB
	Driver  string
	Table   string
	Metrics *database.MetricsCollector
}

// RegisterProviders 注册所有依赖提供者。cfg为nil时使用已加载的全局配置，reg为nil时使用默认注册表。
func RegisterProviders(container *dig.Container, cfg *config.Config, reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	providers := []interface{}{
		func() (*config.Config, error) {
			if cfg != nil {
				return cfg, nil
			}
			if loaded := config.GetAppConfig(); loaded != nil {
				return loaded, nil
			}
			return nil, fmt.Errorf("config not loaded")
		},
		func() *zap.Logger { return logger.GetLogger() },
		func() prometheus.Registerer { return reg },
		newResources,
		newStorage,
		newCorpusReader,
		newEmbedder,
		newGenerator,
		newObservers,
		newEngine,
		newChunkWriter,
		newIngester,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func newStorage(cfg *config.Config, res *Resources, reg prometheus.Registerer) (*Storage, error) {
	st := &Storage{Backend: cfg.RAG.CorpusBackend, Table: cfg.RAG.SQL.Table}

	switch cfg.RAG.CorpusBackend {
	case "postgres":
		db, err := database.OpenPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		st.Gorm, st.SQL, st.Driver = db, sqlDB, "postgres"
	case "sql":
		sqlDB, err := sql.Open(cfg.RAG.SQL.Driver, cfg.RAG.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.RAG.SQL.Driver, err)
		}
		st.SQL, st.Driver = sqlDB, cfg.RAG.SQL.Driver
	default:
		return st, nil
	}

	res.Health.Register("database", st.SQL)
	res.OnClose(st.SQL.Close)
	st.Metrics = database.NewMetricsCollector(st.SQL, reg, res.logger)
	return st, nil
}

func newCorpusReader(cfg *config.Config, st *Storage, res *Resources, log *zap.Logger) (rag.CorpusReader, error) {
	codec, err := corpus.CodecByName(cfg.RAG.EmbeddingCodec)
	if err != nil {
		return nil, err
	}
	limit := cfg.RAG.CandidateLimit

	var reader rag.CorpusReader
	switch cfg.RAG.CorpusBackend {
	case "postgres":
		reader = corpus.NewGormReader(st.Gorm, st.Table, limit, codec)
	case "sql":
		reader = corpus.NewSQLReader(st.SQL, st.Driver, st.Table, limit, codec)
	case "milvus":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c, err := corpus.NewMilvusClient(ctx, corpus.MilvusOptions{
			Address:  cfg.RAG.Milvus.Address,
			Username: cfg.RAG.Milvus.Username,
			Password: cfg.RAG.Milvus.Password,
			Database: cfg.RAG.Milvus.Database,
			UseTLS:   cfg.RAG.Milvus.TLS,
		})
		if err != nil {
			return nil, err
		}
		res.OnClose(c.Close)
		reader = corpus.NewMilvusReader(c, cfg.RAG.Milvus.Collection, limit)
	case "elasticsearch":
		reader, err = corpus.NewElasticsearchReader(corpus.ElasticsearchOptions{
			Addresses: cfg.RAG.Elasticsearch.Addresses,
			Username:  cfg.RAG.Elasticsearch.Username,
			Password:  cfg.RAG.Elasticsearch.Password,
			APIKey:    cfg.RAG.Elasticsearch.APIKey,
			Index:     cfg.RAG.Elasticsearch.Index,
		}, limit)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.RAG.CorpusBackend)
	}

	if !cfg.RAG.Cache.Enabled {
		return reader, nil
	}
	if !cfg.Redis.Enabled {
		log.Warn("候选缓存已开启但Redis未启用，跳过缓存")
		return reader, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := database.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn("Redis不可用，跳过候选缓存", zap.Error(err))
		return reader, nil
	}
	res.Health.Register("redis", database.RedisPinger{Client: client})
	res.OnClose(client.Close)
	return corpus.NewCachedReader(reader, corpus.NewRedisCacheStore(client), cfg.RAG.Cache.TTL, cfg.RAG.Cache.Prefix, log), nil
}

// openAIOptions dashscope走OpenAI兼容模式，共用同一客户端
func openAIOptions(cfg *config.Config, model string) rag.OpenAIOptions {
	opts := rag.OpenAIOptions{
		APIKey:  cfg.AI.OpenAIAPIKey,
		BaseURL: cfg.AI.OpenAIBaseURL,
		Model:   model,
		Timeout: cfg.AI.RequestTimeout,
	}
	if cfg.AI.Provider == "dashscope" {
		opts.APIKey = cfg.AI.DashScopeAPIKey
		if opts.BaseURL == "" {
			opts.BaseURL = rag.DashScopeBaseURL
		}
	}
	return opts
}

func ollamaOptions(cfg *config.Config) rag.OllamaOptions {
	return rag.OllamaOptions{
		ServerURL:      cfg.AI.OllamaURL,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		ChatModel:      cfg.AI.ChatModel,
		Temperature:    float64(cfg.AI.Temperature),
	}
}

func newEmbedder(cfg *config.Config) (rag.Embedder, error) {
	switch cfg.AI.Provider {
	case "ollama":
		return rag.NewOllamaEmbedder(ollamaOptions(cfg))
	case "none":
		return &rag.NoopEmbedder{}, nil
	default:
		return rag.NewOpenAIEmbedder(openAIOptions(cfg, cfg.AI.EmbeddingModel)), nil
	}
}

func newGenerator(cfg *config.Config) (rag.Generator, error) {
	switch cfg.AI.Provider {
	case "ollama":
		return rag.NewOllamaGenerator(ollamaOptions(cfg))
	case "none":
		return &rag.NoopGenerator{}, nil
	default:
		return rag.NewOpenAIGenerator(openAIOptions(cfg, cfg.AI.ChatModel), cfg.AI.Temperature), nil
	}
}

// Observers 引擎的结果观察者集合
type Observers []rag.Observer

func newObservers(cfg *config.Config, reg prometheus.Registerer, res *Resources, log *zap.Logger) Observers {
	observers := Observers{rag.NewMetricsObserver(reg)}
	if !cfg.Kafka.Enabled {
		return observers
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Warn("Kafka生产者初始化失败，不发布问答事件", zap.Error(err))
		return observers
	}
	res.OnClose(producer.Close)
	return append(observers, producer)
}

func newEngine(emb rag.Embedder, reader rag.CorpusReader, gen rag.Generator, observers Observers, cfg *config.Config, log *zap.Logger) *rag.Engine {
	return rag.NewEngine(emb, reader, gen,
		rag.WithTopK(cfg.RAG.TopK),
		rag.WithLogger(log),
		rag.WithObservers(observers...),
	)
}

func newChunkWriter(st *Storage) (ingest.ChunkWriter, error) {
	switch {
	case st.Gorm != nil:
		return ingest.NewGormWriter(st.Gorm), nil
	case st.SQL != nil:
		return ingest.NewSQLWriter(st.SQL, st.Driver, st.Table), nil
	default:
		return nil, fmt.Errorf("corpus backend %q is read-only, ingest requires postgres or sql", st.Backend)
	}
}

func newIngester(cfg *config.Config, emb rag.Embedder, writer ingest.ChunkWriter, log *zap.Logger) *ingest.Ingester {
	splitter := ingest.NewSplitter(cfg.RAG.Ingest.ChunkSize, cfg.RAG.Ingest.ChunkOverlap)
	return ingest.NewIngester(emb, splitter, writer, log)
}
