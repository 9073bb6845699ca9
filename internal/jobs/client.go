package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/summitpanel/summit-api/internal/models"
)

// Client enqueues panel jobs. It satisfies services.Dispatcher.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// DispatchBillingSync enqueues exactly one sync task for the given account.
// The account must carry a billing ID; the account service skips dispatch
// otherwise.
func (c *Client) DispatchBillingSync(ctx context.Context, account *models.Account) error {
	if !account.HasBillingID() {
		return errors.New("account has no billing identity")
	}

	task, err := NewBillingSyncTask(BillingSyncPayload{
		AccountID: account.ID,
		BillingID: *account.BillingID,
		Email:     account.Email,
		Username:  account.Username,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(10))
	return err
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.client.Close()
}
