package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/csform-next/internal/gateway/mmio"
	"github.com/csform-next/internal/provider"
	"github.com/csform-next/internal/queue"

	"github.com/hibiken/asynq"
)

func newTestConsumer(t *testing.T, endpoint string) *Consumer {
	t.Helper()
	gateway, err := mmio.NewClient(mmio.Config{
		APIHost:            endpoint,
		ConversionEndpoint: endpoint + "/conversion",
		ValidationHost:     endpoint,
	})
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	return NewConsumer(&provider.Container{Gateway: gateway})
}

func TestHandleConversionDeliverUnmarshalFailed(t *testing.T) {
	consumer := newTestConsumer(t, "http://127.0.0.1:0")
	task := asynq.NewTask(queue.TaskConversionDeliver, []byte("{not-json"))
	if err := consumer.handleConversionDeliver(context.Background(), task); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestHandleConversionDeliverSkipsEmptyEvent(t *testing.T) {
	consumer := newTestConsumer(t, "http://127.0.0.1:0")
	data, _ := json.Marshal(queue.ConversionDeliverPayload{})
	task := asynq.NewTask(queue.TaskConversionDeliver, data)
	if err := consumer.handleConversionDeliver(context.Background(), task); err != nil {
		t.Fatalf("empty event should be dropped without error, got %v", err)
	}
}

func TestHandleConversionDeliverSuccess(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	consumer := newTestConsumer(t, server.URL)
	data, _ := json.Marshal(queue.ConversionDeliverPayload{EventName: "Purchase"})
	task := asynq.NewTask(queue.TaskConversionDeliver, data)
	if err := consumer.handleConversionDeliver(context.Background(), task); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("relay endpoint should be called once, got %d", calls)
	}
}

func TestHandleConversionDeliverRetryOnGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	consumer := newTestConsumer(t, server.URL)
	data, _ := json.Marshal(queue.ConversionDeliverPayload{EventName: "Purchase"})
	task := asynq.NewTask(queue.TaskConversionDeliver, data)
	if err := consumer.handleConversionDeliver(context.Background(), task); err == nil {
		t.Fatalf("gateway failure should surface as task error for retry")
	}
}
