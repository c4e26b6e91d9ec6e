package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bedrockmate/internal/logger"
)

func TestRedisEnqueuePublishesTask(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(RedisConfig{Addr: mr.Addr()}, nil)
	defer r.Stop()

	if err := r.Enqueue(context.Background(), "job-1"); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	pending, err := mr.List("asynq:{" + DefaultRedisQueue + "}:pending")
	if err != nil {
		t.Fatalf("pending list missing: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending task, got %d", len(pending))
	}
	if s := r.Stats(); s.Submitted != 1 || s.Backend != BackendRedis {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRedisEnqueueUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	r := NewRedis(RedisConfig{Addr: addr}, nil)
	defer r.Stop()
	if err := r.Enqueue(context.Background(), "job-1"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if r.Stats().Rejected != 1 {
		t.Fatalf("expected rejected counter to be 1")
	}
}

func TestRedisProcessDeliversJobID(t *testing.T) {
	r := NewRedis(RedisConfig{Addr: "127.0.0.1:0"}, nil)
	defer r.Stop()

	var got string
	h := r.process(func(_ context.Context, id string) { got = id })
	if err := h(context.Background(), asynq.NewTask(TaskExecuteJob, []byte(`{"job_id":"abc"}`))); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("expected job id abc, got %q", got)
	}
	if r.Stats().Completed != 1 {
		t.Fatalf("expected completed counter to be 1")
	}
}

func TestRedisProcessSkipsRetry(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := NewRedis(RedisConfig{Addr: "127.0.0.1:0"}, logger.NewFromZap(zap.New(core)))
	defer r.Stop()

	h := r.process(func(context.Context, string) { panic("boom") })

	err := h(context.Background(), asynq.NewTask(TaskExecuteJob, []byte(`not json`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}

	err = h(context.Background(), asynq.NewTask(TaskExecuteJob, []byte(`{"job_id":"x"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry after panic, got %v", err)
	}
	if r.Stats().Panics != 1 {
		t.Fatalf("expected one recorded panic")
	}
	if logs.FilterMessage("worker panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestRedisStopBeforeStart(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(RedisConfig{Addr: mr.Addr()}, nil)
	r.Stop()
	if err := r.Enqueue(context.Background(), "x"); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if err := r.Start(func(context.Context, string) {}, nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped from Start, got %v", err)
	}
}

func BenchmarkRedisEnqueue(b *testing.B) {
	mr := miniredis.RunT(b)
	r := NewRedis(RedisConfig{Addr: mr.Addr()}, nil)
	defer r.Stop()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Enqueue(ctx, "bench"); err != nil {
			b.Fatalf("enqueue: %v", err)
		}
	}
}
