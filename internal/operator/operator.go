package operator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/spendiq-server/internal/operator/actions"
	"github.com/carson-networks/spendiq-server/internal/storage"
)

// Store opens write transactions for actions.
type Store interface {
	Write(ctx context.Context) (*storage.Writer, error)
}

// Operator is the worker that processes items from the queue.
type Operator struct {
	store  Store
	queue  chan ActionItem
	logger *logrus.Logger
}

func NewOperator(s Store, queue chan ActionItem, logger *logrus.Logger) *Operator {
	return &Operator{
		store:  s,
		queue:  queue,
		logger: logger,
	}
}

// Run listens to the queue and processes items. Exits when the queue is closed.
func (o *Operator) Run() {
	for item := range o.queue {
		o.processItem(item)
	}
}

func (o *Operator) processItem(item ActionItem) {
	// The caller may have given up while the item was queued.
	if err := item.ctx.Err(); err != nil {
		item.response <- ActionItemResponse{err: err}
		return
	}

	writer, err := o.store.Write(item.ctx)
	if err != nil {
		item.response <- ActionItemResponse{err: fmt.Errorf("begin: %w", err)}
		return
	}

	err = o.perform(item, writer)
	if err != nil {
		if rollbackErr := writer.Rollback(); rollbackErr != nil {
			o.logger.WithError(rollbackErr).Warn("Operator.processItem.rollback")
		}
		item.response <- ActionItemResponse{err: err}
		return
	}

	if err = writer.Commit(); err != nil {
		item.response <- ActionItemResponse{err: fmt.Errorf("commit: %w", err)}
		return
	}

	item.response <- ActionItemResponse{}
}

// perform runs the action, turning a panic into an error so the transaction is rolled back.
func (o *Operator) perform(item ActionItem, writer *storage.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return item.action.Perform(item.ctx, writer)
}

type ActionItem struct {
	ctx      context.Context
	action   actions.IAction
	response chan ActionItemResponse
}

type ActionItemResponse struct {
	err error
}
