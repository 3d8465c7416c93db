package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testRequest() *BatchRequest {
	return &BatchRequest{
		From:       "+15550199999",
		Message:    "Hello!",
		Recipients: []string{"+15550100001", "+15550100002"},
	}
}

func TestSendBatchSuccess(t *testing.T) {
	var gotPath string
	var gotReq BatchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(BatchResponse{Delivered: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 1, testLogger())
	resp, err := client.SendBatch(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, "/api/sendBatch", gotPath)
	assert.Equal(t, "+15550199999", gotReq.From)
	assert.Len(t, gotReq.Recipients, 2)
}

func TestSendBatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(BatchResponse{Error: "overloaded"})
			return
		}
		json.NewEncoder(w).Encode(BatchResponse{Delivered: 2})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 5, testLogger())
	resp, err := client.SendBatch(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendBatchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(BatchResponse{Error: "sender not registered"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 5, testLogger())
	_, err := client.SendBatch(context.Background(), testRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender not registered")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendBatchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(BatchResponse{Error: "database down"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 2, testLogger())
	_, err := client.SendBatch(context.Background(), testRequest())

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendBatchUnreachableGateway(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, 1, testLogger())
	_, err := client.SendBatch(context.Background(), testRequest())
	assert.Error(t, err)
}
