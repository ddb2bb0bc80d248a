package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/labtrace_backend/config"
	"github.com/Alijeyrad/labtrace_backend/pkg/events"
)

// WorkerModule registers the NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg *config.Config
	NC  *nats.Conn
	Log *slog.Logger
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		return
	}
	var subs []*nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			subs, err = startAuditWorker(p.NC, p.Cfg.Events.SubjectPrefix, p.Log)
			return err
		},
		OnStop: func(ctx context.Context) error {
			// the connection drain in ProvideNatsConn flushes pending messages
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// audit_worker
// ---------------------------------------------------------------------------

func startAuditWorker(nc *nats.Conn, prefix string, log *slog.Logger) ([]*nats.Subscription, error) {
	handle := auditHandler(prefix, log.With("worker", "audit"))

	var subs []*nats.Subscription
	for _, event := range []string{events.LotCreated, events.SpecimenCreated} {
		sub, err := nc.Subscribe(events.Subject(prefix, event), handle)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// auditHandler records every creation event in the log so item number
// allocation can be reconstructed after the fact.
func auditHandler(prefix string, log *slog.Logger) nats.MsgHandler {
	lotSubject := events.Subject(prefix, events.LotCreated)
	specimenSubject := events.Subject(prefix, events.SpecimenCreated)

	return func(msg *nats.Msg) {
		switch msg.Subject {
		case lotSubject:
			var ev events.LotCreatedEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				log.Warn("audit: undecodable lot event", "err", err)
				return
			}
			log.Info("audit: lot created",
				"lot_id", ev.LotID, "job_id", ev.JobID, "item_no", ev.ItemNo,
				"allocated", ev.Allocated, "attempts", ev.Attempts, "at", ev.At)
			if ev.Attempts > 1 {
				log.Warn("audit: item_no allocation contended", "job_id", ev.JobID, "attempts", ev.Attempts)
			}

		case specimenSubject:
			var ev events.SpecimenCreatedEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				log.Warn("audit: undecodable specimen event", "err", err)
				return
			}
			log.Info("audit: specimen created", "specimen_oid", ev.SpecimenOID, "specimen_id", ev.SpecimenID, "at", ev.At)

		default:
			log.Debug("audit: ignoring subject", "subject", msg.Subject)
		}
	}
}
