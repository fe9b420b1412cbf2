package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAnswerEvent(t *testing.T) {
	tenant := "biz-1"
	event := NewAnswerEvent(rag.Outcome{
		Question: "refunds?",
		TenantID: &tenant,
		State:    rag.StateDone,
		Sources:  []rag.Source{{ID: "c1"}, {ID: "c2"}},
		Duration: 1500 * time.Millisecond,
	})

	assert.NotEmpty(t, event.RequestID)
	assert.Equal(t, "done", event.State)
	assert.Equal(t, []string{"c1", "c2"}, event.SourceIDs)
	assert.Equal(t, int64(1500), event.LatencyMS)
	assert.Empty(t, event.Error)

	failed := NewAnswerEvent(rag.Outcome{State: rag.StateDegraded, FailedAt: rag.StateEmbedding, Err: errors.New("boom")})
	assert.Equal(t, "embedding", failed.FailedAt)
	assert.Equal(t, "boom", failed.Error)
	assert.NotNil(t, failed.SourceIDs)
}

func TestProducer_Observe(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewSaramaConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		event, err := ParseAnswerEvent(val)
		if err != nil {
			return err
		}
		if event.State != "no_evidence" || event.Question != "hello" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewProducerWith(sp, "", zap.NewNop())
	p.Observe(context.Background(), rag.Outcome{Question: "hello", State: rag.StateNoEvidence})
	require.NoError(t, p.Close())
}

func TestProducer_PublishFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewSaramaConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(sp, "rag.answered", nil)
	err := p.Publish(NewAnswerEvent(rag.Outcome{State: rag.StateDone}))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	// 观察者路径只记录日志
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	assert.NotPanics(t, func() { p.Observe(context.Background(), rag.Outcome{State: rag.StateDone}) })
	require.NoError(t, p.Close())
}

func TestParseAnswerEvent(t *testing.T) {
	data, err := json.Marshal(AnswerEvent{RequestID: "r1", State: "done"})
	require.NoError(t, err)

	event, err := ParseAnswerEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "r1", event.RequestID)

	_, err = ParseAnswerEvent([]byte(`{"state":"done"}`))
	assert.Error(t, err)
	_, err = ParseAnswerEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestAnswerGroupHandler_Process(t *testing.T) {
	var got []AnswerEvent
	h := &answerGroupHandler{
		logger: zap.NewNop(),
		handle: func(ctx context.Context, e AnswerEvent) error {
			got = append(got, e)
			return nil
		},
	}

	data, _ := json.Marshal(AnswerEvent{RequestID: "r2", State: "degraded"})
	h.process(context.Background(), &sarama.ConsumerMessage{Value: data})
	h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte("garbage")})

	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].RequestID)
}

// slowSyncProducer 发送阻塞直到release关闭，模拟不可用的broker
type slowSyncProducer struct {
	sarama.SyncProducer
	release chan struct{}
	sent    atomic.Int64
}

func (s *slowSyncProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	<-s.release
	s.sent.Add(1)
	return 0, s.sent.Load(), nil
}

func (s *slowSyncProducer) Close() error { return nil }

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, text string) (rag.EmbeddingVector, error) {
	return rag.EmbeddingVector{1, 0}, nil
}
func (staticEmbedder) Dimensions() int { return 2 }
func (staticEmbedder) Ready() bool     { return true }

type staticGenerator struct{}

func (staticGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	return "ok", nil
}
func (staticGenerator) Ready() bool { return true }

func TestProducer_SlowBrokerDoesNotBlockRun(t *testing.T) {
	sp := &slowSyncProducer{release: make(chan struct{})}
	p := NewProducerWith(sp, "rag.answered", zap.NewNop())

	corpus := rag.CorpusReaderFunc(func(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
		return []rag.KnowledgeChunk{{ID: "c1", Title: "Refunds", Content: "Five days.", Embedding: rag.EmbeddingVector{1, 0}}}, nil
	})
	engine := rag.NewEngine(staticEmbedder{}, corpus, staticGenerator{}, rag.WithObservers(p))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := engine.Run(ctx, "refunds?", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Answer)
	assert.Less(t, elapsed, 200*time.Millisecond, "publishing happens off the request path")

	close(sp.release)
	require.NoError(t, p.Close())
	assert.Equal(t, int64(1), sp.sent.Load(), "queued event is flushed on close")
}

func TestProducer_DropsWhenQueueFull(t *testing.T) {
	sp := &slowSyncProducer{release: make(chan struct{})}
	p := NewProducerWithBuffer(sp, "rag.answered", 1, zap.NewNop())

	for i := 0; i < 3; i++ {
		p.Observe(context.Background(), rag.Outcome{State: rag.StateDone})
	}
	assert.GreaterOrEqual(t, p.Dropped(), int64(1))

	close(sp.release)
	require.NoError(t, p.Close())
	assert.Equal(t, int64(3)-p.Dropped(), sp.sent.Load())

	// 关闭后的事件直接忽略
	assert.NotPanics(t, func() { p.Observe(context.Background(), rag.Outcome{State: rag.StateDone}) })
	assert.NoError(t, p.Close())
}
