// Package prober implements the liveness prober: the coordinator
// pings itself through the bus on the "admin" topic and declares
// itself unhealthy if too many consecutive pings go unanswered. This
// is a direct port of kafka_ping's cadence and backoff tiers.
package prober

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/bus"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

// Tuning constants, named for what original hardcodes inline.
const (
	waitAfterPingReceived   = 120 * time.Second
	waitBeforeFirstReceived = 5 * time.Second
	maxPingsNotReceived     = 10

	retryWaitSteadyState = 1 * time.Second
	retryWaitFirstStart  = 5 * time.Second
	maxConsecutiveErrorsSteady = 8
	maxConsecutiveErrorsStart  = 30
)

// Prober sends periodic pings and tracks whether they're answered.
// The "admin"/"ping" dispatch handler calls NotifyPingReceived on a
// matching self-addressed reply, which resets pingsNotReceived to zero.
type Prober struct {
	Bus              bus.Msg
	Log              *logrus.Entry
	OnMissedGauge    func(missed int)
	pingsNotReceived int
}

// New builds a Prober.
func New(b bus.Msg, log *logrus.Entry, onMissedGauge func(int)) *Prober {
	return &Prober{Bus: b, Log: log, OnMissedGauge: onMissedGauge, pingsNotReceived: 1}
}

// NotifyPingReceived is called by the dispatch loop when it observes
// an admin/ping message addressed from "lcm" to "lcm".
func (p *Prober) NotifyPingReceived() {
	p.pingsNotReceived = 0
}

// Run sends pings forever until ctx is cancelled, matching kafka_ping.
func (p *Prober) Run(ctx context.Context) error {
	p.Log.Debug("liveness prober starting")
	consecutiveErrors := 0
	firstStart := true
	kafkaHasReceived := false
	p.pingsNotReceived = 1

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := p.Bus.Write(ctx, "admin", "ping", map[string]interface{}{"from": "lcm", "to": "lcm"})
		if err != nil {
			maxErrors := maxConsecutiveErrorsSteady
			if firstStart {
				maxErrors = maxConsecutiveErrorsStart
			}
			if consecutiveErrors == maxErrors {
				p.Log.WithError(err).Error("liveness prober exiting: too many consecutive errors")
				return err
			}
			consecutiveErrors++
			p.Log.WithError(err).Error("liveness prober retrying after error")
			wait := retryWaitSteadyState
			if firstStart {
				wait = retryWaitFirstStart
			}
			if sleepOrDone(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		wait := waitBeforeFirstReceived
		if kafkaHasReceived {
			wait = waitAfterPingReceived
		}
		if p.pingsNotReceived == 0 {
			kafkaHasReceived = true
		}
		p.pingsNotReceived++
		if p.OnMissedGauge != nil {
			p.OnMissedGauge(p.pingsNotReceived)
		}

		if sleepOrDone(ctx, wait) {
			return ctx.Err()
		}

		if p.pingsNotReceived > maxPingsNotReceived {
			err := lcmerrors.Newf("prober", "not receiving pings from the bus")
			p.Log.WithError(err).Error("liveness prober declaring failure")
			return err
		}
		consecutiveErrors = 0
		firstStart = false
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
