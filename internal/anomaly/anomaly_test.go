package anomaly

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// -- Client tests --

func TestClient_AnalyzeTransaction_Success(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 5*time.Second)
	err := client.AnalyzeTransaction(context.Background(), "user-1", "tx-9")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/analyze-transaction-complete/user-1/tx-9", gotPath)
}

func TestClient_AnalyzeTransaction_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewClient(server.URL, 5*time.Second).AnalyzeTransaction(context.Background(), "u", "t")
	assert.ErrorContains(t, err, "502")
}

func TestClient_AnalyzeTransaction_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	err := NewClient(server.URL, 50*time.Millisecond).AnalyzeTransaction(context.Background(), "u", "t")
	assert.Error(t, err)
}

// -- Trigger tests --

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeTransaction(ctx context.Context, userID, transactionID string) error {
	args := m.Called(ctx, userID, transactionID)
	return args.Error(0)
}

func newBufferedLogger() (*logrus.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	logger := logrus.New()
	logger.Out = buf
	logger.Formatter = &logrus.JSONFormatter{}
	return logger, buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestTrigger_FireDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeTransaction", mock.Anything, "u-1", "tx-1").
		Run(func(mock.Arguments) { <-release }).
		Return(nil)

	logger, _ := newBufferedLogger()
	trigger := NewTrigger(analyzer, time.Second, logger)

	returned := make(chan struct{})
	go func() {
		trigger.Fire("u-1", "tx-1")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Fire blocked on the remote call")
	}

	close(release)
	trigger.Wait()
	analyzer.AssertExpectations(t)
}

func TestTrigger_FailureIsLoggedOnly(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeTransaction", mock.Anything, "u-1", "tx-1").Return(errors.New("service down")).Once()

	logger, buf := newBufferedLogger()
	trigger := NewTrigger(analyzer, time.Second, logger)
	trigger.Fire("u-1", "tx-1")
	trigger.Wait()

	assert.Contains(t, buf.String(), "AnomalyTrigger.Fire.failed")
	assert.Contains(t, buf.String(), "service down")
	analyzer.AssertNumberOfCalls(t, "AnalyzeTransaction", 1)
}

func TestTrigger_PanicIsRecovered(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeTransaction", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("bad client")
	})

	logger, buf := newBufferedLogger()
	trigger := NewTrigger(analyzer, time.Second, logger)
	trigger.Fire("u-1", "tx-1")
	trigger.Wait()

	assert.Contains(t, buf.String(), "bad client")
}

func TestTrigger_UsesDeadline(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeTransaction", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), "u-1", "tx-1").Return(nil)

	logger, _ := newBufferedLogger()
	trigger := NewTrigger(analyzer, time.Second, logger)
	trigger.Fire("u-1", "tx-1")
	trigger.Wait()

	analyzer.AssertExpectations(t)
}
