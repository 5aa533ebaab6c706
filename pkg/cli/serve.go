package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memori-lab/memoriai/pkg/cli/config"
	"github.com/memori-lab/memoriai/pkg/domain/model"
	"github.com/memori-lab/memoriai/pkg/service/eventbus"
	"github.com/memori-lab/memoriai/pkg/service/scheduler"
	"github.com/memori-lab/memoriai/pkg/utils/async"
	"github.com/memori-lab/memoriai/pkg/utils/logging"
	"github.com/memori-lab/memoriai/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var repoCfg config.Repository
	var schedCfg config.Scheduler
	var deliveryCfg config.Delivery

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, schedCfg.Flags()...)
	flags = append(flags, deliveryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the reminder scheduler daemon",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			deliveryCh, notifySink, err := deliveryCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure delivery channel")
			}

			bus := eventbus.New()

			// Audit log subscriber. The caregiver dashboard consumes the
			// same stream out of process.
			auditCh := bus.Subscribe("audit-log")
			auditDone := make(chan struct{})
			async.Dispatch(ctx, func(ctx context.Context) error {
				defer close(auditDone)
				for event := range auditCh {
					logAuditEvent(ctx, event)
				}
				return nil
			})

			sched := scheduler.New(repo, deliveryCh, notifySink, bus, schedCfg.Config())
			sched.Start(ctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			sig := <-sigCh
			logging.Default().Info("Received shutdown signal", "signal", sig)

			sched.Stop()
			bus.Close()
			<-auditDone

			logging.Default().Info("Shutdown completed")
			return nil
		},
	}
}

func logAuditEvent(ctx context.Context, event model.AuditEvent) {
	logging.From(ctx).Info("audit event",
		"type", event.Type,
		"owner_id", event.OwnerID,
		"timestamp", event.Timestamp,
		"payload", event.Payload,
	)
}
