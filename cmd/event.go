package cmd

import (
	"context"
	"time"

	"github.com/frahmantamala/expense-reporting/internal/core/events"
	"github.com/frahmantamala/expense-reporting/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event bus commands",
	Long:  `Exercise the in-process event bus and its subscribers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a sample expense.status_changed event",
	Long:  `Publish a sample status change through the same subscribers the server registers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishSampleEvent(cmd.Context())
	},
}

var (
	eventExpenseID int64
	eventFrom      string
	eventTo        string
	eventAction    string
)

func publishSampleEvent(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lg := logger.LoggerWrapper()

	bus := events.NewEventBus(lg)
	events.RegisterExpenseSubscribers(bus, lg)

	event := events.NewExpenseStatusChangedEvent(eventExpenseID, 1, 2, eventFrom, eventTo, eventAction, "MANAGER")
	lg.Info("publishing sample event", "event_type", event.EventType(), "event_id", event.EventID())

	// Subscribers run inline so a failing one surfaces as the exit status.
	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return bus.PublishSync(syncCtx, event)
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventExpenseID, "expense-id", 1, "expense id carried by the event")
	publishEventCmd.Flags().StringVar(&eventFrom, "from", "SUBMITTED", "previous status")
	publishEventCmd.Flags().StringVar(&eventTo, "to", "MANAGER_APPROVED", "new status")
	publishEventCmd.Flags().StringVar(&eventAction, "action", "approve", "action applied")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
