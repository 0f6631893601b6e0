// Package dispatch implements the main read loop: it pulls commands
// off the bus, assigns each a monotonically increasing order id, and
// routes it to the matching workflow, a direct port of kafka_read.
package dispatch

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/bus"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/metrics"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/prober"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/workflows"
)

// Backoff tiers for consecutive bus read errors, the same two-tier
// shape as the liveness prober's.
const (
	retryWaitStart  = 5 * time.Second
	retryWaitSteady = 1 * time.Second

	maxConsecutiveErrorsStart  = 30
	maxConsecutiveErrorsSteady = 8
)

// Dispatcher owns the read loop: bus, task registry, and the
// workflows it routes commands to.
type Dispatcher struct {
	Bus       bus.Msg
	Workflows *workflows.Workflows
	Registry  *registry.Registry
	Prober    *prober.Prober
	Metrics   *metrics.Metrics
	Log       *logrus.Entry

	orderID int64
}

// New builds a Dispatcher.
func New(b bus.Msg, wf *workflows.Workflows, reg *registry.Registry, pr *prober.Prober, m *metrics.Metrics, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{Bus: b, Workflows: wf, Registry: reg, Prober: pr, Metrics: m, Log: log}
}

func (d *Dispatcher) nextOrderID() int64 {
	return atomic.AddInt64(&d.orderID, 1)
}

// Run reads and dispatches commands until ctx is cancelled or the bus
// reports exit, matching kafka_read's outer loop and its two-tier
// backoff on consecutive read errors.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Log.Debug("dispatch loop starting")
	consecutiveErrors := 0
	firstStart := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := d.Bus.Read(ctx, bus.Topics)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			maxErrors := maxConsecutiveErrorsSteady
			if firstStart {
				maxErrors = maxConsecutiveErrorsStart
			}
			if consecutiveErrors == maxErrors {
				d.Log.WithError(err).Error("dispatch loop exiting: too many consecutive read errors")
				return err
			}
			consecutiveErrors++
			if d.Metrics != nil {
				d.Metrics.DispatchErrors.With(prometheus.Labels{"stage": "read"}).Inc()
			}
			d.Log.WithError(err).Error("dispatch loop retrying after bus read error")
			wait := retryWaitSteady
			if firstStart {
				wait = retryWaitStart
			}
			if sleepOrDone(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		consecutiveErrors = 0
		firstStart = false

		if stop := d.handle(ctx, msg); stop {
			return nil
		}
	}
}

// handle routes a single message. It returns true if the loop should
// stop (the supplemented "exit" command).
func (d *Dispatcher) handle(ctx context.Context, msg bus.Message) bool {
	if strings.HasPrefix(msg.Command, "#") {
		return false
	}
	if d.Metrics != nil {
		d.Metrics.DispatchedTotal.With(prometheus.Labels{"topic": msg.Topic, "command": msg.Command}).Inc()
	}

	switch msg.Topic {
	case "admin":
		return d.handleAdmin(msg)
	case "vim_account":
		d.handleVim(ctx, msg)
	case "sdn":
		d.handleSdn(ctx, msg)
	case "ns":
		d.handleNs(ctx, msg)
	default:
		d.Log.WithField("topic", msg.Topic).Warn("dispatch: unknown topic")
	}
	return false
}

func (d *Dispatcher) handleAdmin(msg bus.Message) bool {
	switch msg.Command {
	case "ping":
		from, _ := msg.Params["from"].(string)
		to, _ := msg.Params["to"].(string)
		if from == "lcm" && to == "lcm" {
			d.Prober.NotifyPingReceived()
		}
	case "echo":
		d.Log.WithField("params", msg.Params).Info("admin echo")
	case "exit", "quit":
		d.Log.Info("dispatch loop received exit command")
		return true
	case "test":
		d.Log.WithField("params", msg.Params).Debug("admin test command")
	default:
		d.Log.WithField("command", msg.Command).Warn("dispatch: unknown admin command")
	}
	return false
}

func (d *Dispatcher) handleVim(ctx context.Context, msg bus.Message) {
	orderID := d.nextOrderID()
	switch msg.Command {
	case "create":
		vimID, _ := msg.Params["_id"].(string)
		d.spawn(ctx, "vim_account", vimID, orderID, "create", func(taskCtx context.Context) {
			d.Workflows.VimCreate(taskCtx, msg.Params, orderID)
		})
	case "edit":
		vimID, _ := msg.Params["_id"].(string)
		d.spawn(ctx, "vim_account", vimID, orderID, "edit", func(taskCtx context.Context) {
			d.Workflows.VimEdit(taskCtx, msg.Params, orderID)
		})
	case "delete":
		vimID, _ := msg.Params["_id"].(string)
		d.Registry.CancelAll("vim_account", vimID)
		d.spawn(ctx, "vim_account", vimID, orderID, "delete", func(taskCtx context.Context) {
			d.Workflows.VimDelete(taskCtx, vimID, orderID)
		})
	default:
		d.Log.WithField("command", msg.Command).Warn("dispatch: unknown vim_account command")
	}
}

func (d *Dispatcher) handleSdn(ctx context.Context, msg bus.Message) {
	orderID := d.nextOrderID()
	switch msg.Command {
	case "create":
		sdnID, _ := msg.Params["_id"].(string)
		d.spawn(ctx, "sdn", sdnID, orderID, "create", func(taskCtx context.Context) {
			d.Workflows.SdnCreate(taskCtx, msg.Params, orderID)
		})
	case "edit":
		sdnID, _ := msg.Params["_id"].(string)
		d.spawn(ctx, "sdn", sdnID, orderID, "edit", func(taskCtx context.Context) {
			d.Workflows.SdnEdit(taskCtx, msg.Params, orderID)
		})
	case "delete":
		sdnID, _ := msg.Params["_id"].(string)
		d.Registry.CancelAll("sdn", sdnID)
		d.spawn(ctx, "sdn", sdnID, orderID, "delete", func(taskCtx context.Context) {
			d.Workflows.SdnDelete(taskCtx, sdnID, orderID)
		})
	default:
		d.Log.WithField("command", msg.Command).Warn("dispatch: unknown sdn command")
	}
}

func (d *Dispatcher) handleNs(ctx context.Context, msg bus.Message) {
	orderID := d.nextOrderID()
	nsrID, _ := msg.Params["nsr_id"].(string)
	nslcmopID, _ := msg.Params["nslcmop_id"].(string)

	switch msg.Command {
	case "instantiate":
		d.spawn(ctx, "ns", nsrID, orderID, "instantiate", func(taskCtx context.Context) {
			d.Workflows.NsInstantiate(taskCtx, nsrID, nslcmopID, orderID)
		})
	case "terminate":
		d.Registry.CancelAll("ns", nsrID)
		d.spawn(ctx, "ns", nsrID, orderID, "terminate", func(taskCtx context.Context) {
			d.Workflows.NsTerminate(taskCtx, nsrID, nslcmopID)
		})
	case "action":
		d.spawn(ctx, "ns", nsrID, orderID, "action", func(taskCtx context.Context) {
			d.Workflows.NsAction(taskCtx, nsrID, nslcmopID)
		})
	case "show", "deleted":
		// Read-only inspection is served by the adminapi GET
		// /api/v1/ns/:id endpoint instead of a bus round-trip.
		d.Log.WithField("command", msg.Command).Debug("dispatch: ns show/deleted served via adminapi, ignoring bus command")
	default:
		d.Log.WithField("command", msg.Command).Warn("dispatch: unknown ns command")
	}
}

// spawn registers a cancellable task under the registry and runs fn in
// its own goroutine, incrementing/decrementing the active-tasks gauge
// around its lifetime.
func (d *Dispatcher) spawn(parent context.Context, topic, entityID string, orderID int64, name string, fn func(context.Context)) {
	if entityID == "" {
		d.Log.WithField("name", name).Warn("dispatch: missing entity id, dropping command")
		return
	}
	taskCtx, done := d.Registry.Register(parent, registry.Key{Topic: topic, EntityID: entityID, OrderID: orderID, Name: name})
	if d.Metrics != nil {
		d.Metrics.ActiveTasks.Inc()
	}
	go func() {
		defer done()
		defer func() {
			if d.Metrics != nil {
				d.Metrics.ActiveTasks.Dec()
			}
		}()
		fn(taskCtx)
	}()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
