package billing

import (
	"context"

	"github.com/rs/zerolog"
)

// CustomerDetails is the slice of account state mirrored to the billing
// provider.
type CustomerDetails struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Gateway synchronizes customer records with an external billing system.
// Implementations own their transport, credentials, and error semantics;
// callers only see whether a single sync attempt succeeded.
type Gateway interface {
	SyncCustomerDetails(ctx context.Context, billingID string, details CustomerDetails) error
}

// LogGateway is the no-op gateway used when no billing provider is
// configured. It records the sync and reports success so jobs drain instead
// of retrying forever.
type LogGateway struct {
	logger zerolog.Logger
}

func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) SyncCustomerDetails(_ context.Context, billingID string, details CustomerDetails) error {
	g.logger.Info().
		Str("billing_id", billingID).
		Str("email", details.Email).
		Msg("billing sync requested but no provider is configured")
	return nil
}
