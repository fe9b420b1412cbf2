package rag

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"go.uber.org/zap"
)

// Observer 接收每次调用的终态
type Observer interface {
	Observe(ctx context.Context, outcome Outcome)
}

// ObserverFunc 函数适配器
type ObserverFunc func(ctx context.Context, outcome Outcome)

func (f ObserverFunc) Observe(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Option Engine可选项
type Option func(*Engine)

// WithTopK 设置返回的证据条数
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.SetTopK(k)
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObservers 注册观察者
func WithObservers(observers ...Observer) Option {
	return func(e *Engine) {
		for _, o := range observers {
			if o != nil {
				e.observers = append(e.observers, o)
			}
		}
	}
}

// Engine 问答流水线。各依赖在启动时显式注入，Engine本身无请求级可变状态，可并发使用。
type Engine struct {
	embedder  Embedder
	corpus    CorpusReader
	generator Generator

	topK      atomic.Int64
	logger    *zap.Logger
	errLogger *apperrors.ErrorLogger
	observers []Observer
}

// NewEngine 创建问答流水线
func NewEngine(embedder Embedder, corpus CorpusReader, generator Generator, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		corpus:    corpus,
		generator: generator,
		logger:    zap.NewNop(),
	}
	e.topK.Store(DefaultTopK)
	for _, opt := range opts {
		opt(e)
	}
	e.errLogger = apperrors.NewErrorLogger(e.logger)
	return e
}

// SetTopK 调整返回条数，配置热更新时调用；k<=0时恢复默认值
func (e *Engine) SetTopK(k int) {
	if k <= 0 {
		k = DefaultTopK
	}
	e.topK.Store(int64(k))
}

// TopK 当前返回条数
func (e *Engine) TopK() int {
	return int(e.topK.Load())
}

// Ready 模型服务是否已配置
func (e *Engine) Ready() bool {
	return e.embedder.Ready() && e.generator.Ready()
}

// Run 执行一次问答。
// 总是返回非nil的Result；仅当流水线以degraded结束时error非nil，并包装底层的ProviderError或StorageError。
func (e *Engine) Run(ctx context.Context, question string, tenantID *string) (*Result, error) {
	start := time.Now()
	q := strings.TrimSpace(question)
	outcome := Outcome{Question: q, TenantID: tenantID}

	if q == "" {
		res := &Result{Answer: MessageEmptyQuestion, Sources: []Source{}, State: StateEmptyQuestion}
		e.finish(ctx, &outcome, res, start)
		return res, nil
	}

	vector, err := e.embedder.Embed(ctx, q)
	if err != nil {
		return e.degrade(ctx, &outcome, StateEmbedding, err, start)
	}

	candidates, err := e.corpus.FetchCandidates(ctx, tenantID)
	if err != nil {
		return e.degrade(ctx, &outcome, StateRetrieving, err, start)
	}
	outcome.Candidates = len(candidates)

	ranked := Rank(vector, candidates, e.TopK())
	if len(ranked) == 0 {
		res := &Result{Answer: MessageNoEvidence, Sources: []Source{}, State: StateNoEvidence}
		e.finish(ctx, &outcome, res, start)
		return res, nil
	}

	evidence := Assemble(ranked)
	answer, err := e.generator.Generate(ctx, q, evidence)
	if err != nil {
		return e.degrade(ctx, &outcome, StateGenerating, err, start)
	}

	res := &Result{Answer: answer, Sources: sourcesFrom(ranked), State: StateDone}
	e.finish(ctx, &outcome, res, start)
	return res, nil
}

func (e *Engine) degrade(ctx context.Context, outcome *Outcome, stage State, cause error, start time.Time) (*Result, error) {
	err := fmt.Errorf("rag %s failed: %w", stage, cause)
	outcome.FailedAt = stage
	outcome.Err = err

	e.errLogger.LogError(cause,
		zap.String("stage", string(stage)),
		zap.Stringp("tenant_id", outcome.TenantID),
	)

	res := &Result{Answer: MessageUnavailable, Sources: []Source{}, State: StateDegraded}
	e.finish(ctx, outcome, res, start)
	return res, err
}

func (e *Engine) finish(ctx context.Context, outcome *Outcome, res *Result, start time.Time) {
	outcome.State = res.State
	outcome.Sources = res.Sources
	outcome.Duration = time.Since(start)

	e.logger.Debug("rag run finished",
		zap.String("state", string(res.State)),
		zap.Int("candidates", outcome.Candidates),
		zap.Int("sources", len(res.Sources)),
		zap.Duration("duration", outcome.Duration),
	)

	for _, o := range e.observers {
		o.Observe(ctx, *outcome)
	}
}
