// Package workflows implements the long-running VIM/SDN/NS state
// machines: vim_create/edit/delete, sdn_create/edit/delete,
// ns_instantiate, ns_terminate, ns_action, and the VCA callback
// aggregator that folds per-VNF charm status into NS-level
// config-status. Each is a direct, cooperative-cancellation-aware
// port of the corresponding method in the original coordinator.
package workflows

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/bus"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/metrics"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/ro"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/vca"
)

// Collaborators bundles every external dependency a workflow needs.
// This is the explicit LcmContext the spec's design notes call for in
// place of the original's implicit self.* attribute soup.
type Collaborators struct {
	Db       db.Db
	Fs       fs.Fs
	Bus      bus.Msg
	RO       *ro.Client
	VCA      vca.Client
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Log      *logrus.Entry
}

// charmRef identifies which NS/operation/member-vnf a deployed charm
// application belongs to, so an asynchronous status push arriving with
// only an application name can be routed to the right aggregation
// call.
type charmRef struct {
	NsrID          string
	NslcmopID      string
	MemberVnfIndex string
}

// Workflows holds the collaborators plus the charm application-name
// index described above. It caches no documents: each workflow
// invocation loads the documents it needs by id when it starts and
// writes them back by id.
type Workflows struct {
	C Collaborators

	appIndexMu sync.Mutex
	appIndex   map[string]charmRef
}

// New builds a Workflows bound to the given collaborators.
func New(c Collaborators) *Workflows {
	return &Workflows{C: c, appIndex: make(map[string]charmRef)}
}

// registerApp records which NS/operation/member-vnf owns
// applicationName, called when a charm deploy is started.
func (w *Workflows) registerApp(applicationName, nsrID, nslcmopID, memberVnfIndex string) {
	w.appIndexMu.Lock()
	defer w.appIndexMu.Unlock()
	w.appIndex[applicationName] = charmRef{NsrID: nsrID, NslcmopID: nslcmopID, MemberVnfIndex: memberVnfIndex}
}

// RouteStatusUpdate maps an asynchronous VCA hook-status push back to
// its owning NS/operation/member-vnf and folds it into the aggregator,
// the Go analogue of n2vc_callback being invoked directly by N2VC on a
// status event rather than on task completion.
func (w *Workflows) RouteStatusUpdate(ctx context.Context, u vca.StatusUpdate) {
	w.appIndexMu.Lock()
	ref, ok := w.appIndex[u.ApplicationName]
	w.appIndexMu.Unlock()
	if !ok {
		w.logWith(logrus.Fields{"application": u.ApplicationName}).Warn("status push for unknown application, dropping")
		return
	}
	w.HandleStatusPush(ctx, ref.NsrID, ref.NslcmopID, ref.MemberVnfIndex, u.Status, u.Message)
}

// logWith returns a per-call logger tagged with the entity/order this
// workflow invocation is acting on.
func (w *Workflows) logWith(fields logrus.Fields) *logrus.Entry {
	if w.C.Log == nil {
		return logrus.NewEntry(logrus.New()).WithFields(fields)
	}
	return w.C.Log.WithFields(fields)
}

func observeDuration(m *metrics.Metrics, workflow, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.WorkflowDuration.With(prometheus.Labels{"workflow": workflow, "outcome": outcome}).Observe(seconds)
}
