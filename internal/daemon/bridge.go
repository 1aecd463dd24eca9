package daemon

import (
	"context"
	"fmt"

	"skysort/internal/catalog"
	"skysort/internal/events"
	"skysort/internal/logging"
	"skysort/internal/notifications"
)

// bridgeEvents is the hub's consumer inside the daemon: terminal batch
// outcomes become push notifications.
func (d *Daemon) bridgeEvents(ctx context.Context) {
	ch, cancel := d.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.notifyFor(ctx, event)
		}
	}
}

func (d *Daemon) notifyFor(ctx context.Context, event events.Event) {
	var err error
	switch e := event.(type) {
	case events.BatchCompleted:
		switch e.Status {
		case catalog.BatchImported, catalog.BatchResolved:
			err = d.notifier.Publish(ctx, notifications.EventBatchResolved, notifications.Payload{
				"folder": e.FolderName,
				"files":  fmt.Sprintf("%d", e.Total),
			})
		case catalog.BatchNeedsManual:
			err = d.notifier.Publish(ctx, notifications.EventBatchNeedsManual, notifications.Payload{
				"reason": string(d.manualReason(ctx, e.BatchID)),
			})
		}
	case events.AnalysisError:
		payload := notifications.Payload{"folder": e.FolderPath}
		if e.Err != nil {
			payload["error"] = e.Err.Error()
		}
		err = d.notifier.Publish(ctx, notifications.EventBatchError, payload)
	}
	if err != nil {
		d.logger.Warn("notification failed",
			logging.String(logging.FieldEventType, event.Kind()),
			logging.Error(err))
	}
}

func (d *Daemon) manualReason(ctx context.Context, batchID int64) catalog.ManualReason {
	batch, err := d.store.GetBatchByID(ctx, batchID)
	if err != nil || batch == nil {
		return ""
	}
	return batch.ManualReason
}
