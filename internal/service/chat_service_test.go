// FILE: internal/service/chat_service_test.go
package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ems-analytics-be/internal/dto"
	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/internal/repository/memory"
	"ems-analytics-be/pkg/refine"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/scope"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
func (nopLogger) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	return nil, nil
}
func (nopLogger) GetLogById(id string) (*logger.LogEntry, error) { return nil, nil }

func newTestChatService(t *testing.T) (IChatService, IConsumerService) {
	t.Helper()

	cat := catalog.NewMemory(map[scope.EntityType][]string{
		scope.EntityVendor:    {"Deo Corp", "Gaurav Traders"},
		scope.EntityWarehouse: {"Pune 1", "Pune 2"},
		scope.EntityCity:      {"Pune"},
	})

	sessions := memory.NewSessionRepository()
	refiner := refine.NewRefiner(cat, nopLogger{})

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := NewPublisherService("query.results", pubSub)

	chatService := NewChatService(sessions, refiner, publisher, nil)
	consumerService := NewConsumerService(pubSub, "query.results", chatService)
	return chatService, consumerService
}

func TestSendMessageGreeting(t *testing.T) {
	svc, _ := newTestChatService(t)

	res, err := svc.SendMessage(context.Background(), &dto.SendMessageRequest{
		SessionID: "s1",
		Message:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "GREETING", res.Type)
	assert.NotEmpty(t, res.Reply)
}

func TestSendMessageAnalytics(t *testing.T) {
	svc, _ := newTestChatService(t)

	res, err := svc.SendMessage(context.Background(), &dto.SendMessageRequest{
		SessionID: "s1",
		Message:   "total expense for Deo Corp last month",
	})
	require.NoError(t, err)
	assert.Equal(t, "ANALYTICS", res.Type)
	assert.Contains(t, res.CanonicalQuestion, "Deo Corp")
	require.NotNil(t, res.Scope)
	assert.Equal(t, "deo corp", res.Scope.Bindings["VENDOR"])

	state, err := svc.GetState(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, res.CanonicalQuestion, state.LastCanonical)
}

func TestQueryResultFlowsThroughConsumer(t *testing.T) {
	svc, consumer := newTestChatService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, consumer.Consume(ctx))

	_, err := svc.SendMessage(ctx, &dto.SendMessageRequest{
		SessionID: "s1",
		Message:   "total expense for Deo Corp last month",
	})
	require.NoError(t, err)

	require.NoError(t, svc.PublishQueryResult(ctx, &dto.RecordResultRequest{
		SessionID:  "s1",
		EntityType: "VENDOR",
		Entities:   []string{"Deo Corp", "Gaurav Traders"},
		RowCount:   2,
	}))

	assert.Eventually(t, func() bool {
		state, err := svc.GetState(ctx, "s1")
		if err != nil {
			return false
		}
		return state.ResultSummary != "" && state.ResultSummary != "No previous query results"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestApplyQueryResultRejectsUnknownType(t *testing.T) {
	svc, _ := newTestChatService(t)

	err := svc.ApplyQueryResult(context.Background(), &dto.RecordResultRequest{
		SessionID:  "s1",
		EntityType: "PLANET",
		Entities:   []string{"Mars"},
		RowCount:   1,
	})
	assert.Error(t, err)
}

// Exercises concurrent turn processing and state reads on one session;
// meaningful under the race detector, where an unlocked read fails.
func TestGetStateConcurrentWithSendMessage(t *testing.T) {
	svc, _ := newTestChatService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, &dto.SendMessageRequest{
		SessionID: "s1",
		Message:   "total expense for Deo Corp last month",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	turns := []string{
		"also include the remarks",
		"what about Gaurav Traders",
		"no, I meant Deo Corp",
	}
	for i := 0; i < 20; i++ {
		wg.Add(2)
		turn := turns[i%len(turns)]
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, &dto.SendMessageRequest{SessionID: "s1", Message: turn})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.GetState(ctx, "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestResetSession(t *testing.T) {
	svc, _ := newTestChatService(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, &dto.SendMessageRequest{
		SessionID: "s1",
		Message:   "total expense for Deo Corp last month",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ResetSession(ctx, "s1"))

	state, err := svc.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, state.Scope)
	assert.Empty(t, state.LastCanonical)
}