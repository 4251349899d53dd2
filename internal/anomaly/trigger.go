package anomaly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Analyzer is the remote call made for every recorded transaction.
type Analyzer interface {
	AnalyzeTransaction(ctx context.Context, userID, transactionID string) error
}

// Trigger fires anomaly analysis without blocking the caller. Failures are logged and
// never retried or propagated.
type Trigger struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *logrus.Logger
	wg       sync.WaitGroup
}

func NewTrigger(analyzer Analyzer, timeout time.Duration, logger *logrus.Logger) *Trigger {
	return &Trigger{
		analyzer: analyzer,
		timeout:  timeout,
		logger:   logger,
	}
}

// Fire starts the analysis in the background. The call outlives the request that caused it.
func (t *Trigger) Fire(userID, transactionID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		log := t.logger.WithFields(logrus.Fields{
			"userId":        userID,
			"transactionId": transactionID,
		})
		if err := t.call(userID, transactionID); err != nil {
			log.WithError(err).Warn("AnomalyTrigger.Fire.failed")
			return
		}
		log.Debug("AnomalyTrigger.Fire.complete")
	}()
}

func (t *Trigger) call(userID, transactionID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.analyzer.AnalyzeTransaction(ctx, userID, transactionID)
}

// Wait blocks until every fired analysis has finished.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
