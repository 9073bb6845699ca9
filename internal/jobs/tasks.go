package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/summitpanel/summit-api/internal/billing"
)

const (
	// QueueDefault is the queue all panel jobs run on.
	QueueDefault = "default"
	// TaskTypeBillingSync mirrors account details to the billing provider
	// after an account mutation commits.
	TaskTypeBillingSync = "billing:sync_customer"
)

// BillingSyncPayload identifies the customer to synchronize and carries the
// details current as of the mutation that enqueued it.
type BillingSyncPayload struct {
	AccountID int64  `json:"account_id"`
	BillingID string `json:"billing_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
}

// NewBillingSyncTask constructs the Asynq task for a billing sync.
func NewBillingSyncTask(payload BillingSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBillingSync, data), nil
}

// NewBillingSyncHandler returns the worker-side handler for
// TaskTypeBillingSync. Gateway failures are returned to Asynq so its retry
// policy applies; they never reach the caller that mutated the account.
func NewBillingSyncHandler(gateway billing.Gateway, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BillingSyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error().Err(err).Msg("billing sync task has malformed payload")
			return asynq.SkipRetry
		}

		details := billing.CustomerDetails{
			Email:    payload.Email,
			Username: payload.Username,
		}
		if err := gateway.SyncCustomerDetails(ctx, payload.BillingID, details); err != nil {
			logger.Warn().Err(err).
				Int64("account_id", payload.AccountID).
				Msg("billing sync failed, will retry")
			return err
		}

		logger.Debug().Int64("account_id", payload.AccountID).Msg("billing sync completed")
		return nil
	}
}
