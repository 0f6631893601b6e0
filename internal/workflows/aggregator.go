package workflows

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/model"
)

const (
	nsrsCollection     = "nsrs"
	nslcmopsCollection = "nslcmops"
)

// CallbackOutcome is how a charm task (deploy, remove, or an action
// primitive) finished, fed into the aggregator the way the original's
// asyncio task done-callback does.
type CallbackOutcome struct {
	Cancelled bool
	Err       error
}

// HandleTaskOutcome reacts to a charm task finishing for
// memberVnfIndex under (nsrID, nslcmopID), the task-completion half of
// n2vc_callback. nsAction is "instantiate", "terminate", or "action".
func (w *Workflows) HandleTaskOutcome(ctx context.Context, nsrID, nslcmopID, memberVnfIndex, nsAction string, outcome CallbackOutcome) {
	log := w.logWith(map[string]interface{}{"workflow": "vca_callback", "nsr_id": nsrID, "member_vnf_index": memberVnfIndex})

	if outcome.Cancelled {
		log.Debug("vca task cancelled, no status write")
		return
	}

	if nsAction == "action" {
		nslcmopUpdate := map[string]interface{}{"statusEnteredTime": model.Now().Unix()}
		if outcome.Err != nil {
			nslcmopUpdate["operationState"] = model.OpStateFailed
			nslcmopUpdate["detailed-status"] = outcome.Err.Error()
		} else {
			nslcmopUpdate["operationState"] = model.OpStateCompleted
			nslcmopUpdate["detailed-status"] = "Done"
		}
		w.writeNslcmop(ctx, nslcmopID, nslcmopUpdate, log)
		return
	}

	if outcome.Err == nil {
		// instantiate/terminate success is ignored here; aggregation is
		// driven entirely by subsequent status pushes.
		return
	}

	nsrDoc, err := w.C.Db.GetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	if err != nil {
		log.WithError(err).Error("vca_callback: failed to load nsr")
		return
	}
	setVCAEntryStatus(nsrDoc, memberVnfIndex, "error", outcome.Err.Error())
	w.aggregateAndPersist(ctx, nsrID, nslcmopID, nsrDoc, log)
}

// HandleStatusPush reacts to a hook-status push for memberVnfIndex
// under nsrID, the status-push half of n2vc_callback.
func (w *Workflows) HandleStatusPush(ctx context.Context, nsrID, nslcmopID, memberVnfIndex, status, message string) {
	log := w.logWith(map[string]interface{}{"workflow": "vca_callback", "nsr_id": nsrID, "member_vnf_index": memberVnfIndex})

	nsrDoc, err := w.C.Db.GetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	if err != nil {
		log.WithError(err).Error("vca_callback: failed to load nsr")
		return
	}

	if currentVCAStatus(nsrDoc, memberVnfIndex) == status {
		return
	}
	setVCAEntryStatus(nsrDoc, memberVnfIndex, status, message)
	w.aggregateAndPersist(ctx, nsrID, nslcmopID, nsrDoc, log)
}

// aggregateAndPersist recomputes NS-level config-status/detailed-status
// from every tracked VCA entry and writes the result to both the nsr
// and the nslcmop, mirroring n2vc_callback's fallthrough aggregation
// block exactly (status-count bucketing, ";"-joined error text,
// COMPLETED/FAILED_TEMP/"configuring: ..." outcome selection).
func (w *Workflows) aggregateAndPersist(ctx context.Context, nsrID, nslcmopID string, nsrDoc map[string]interface{}, log *logrus.Entry) {
	admin, _ := nsrDoc["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	vca, _ := deployed["VCA"].(map[string]interface{})

	statusCount := map[string]int{}
	var errorText []string
	allActive := true
	for idx, raw := range vca {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		status, _ := entry["operational-status"].(string)
		statusCount[status]++
		if status != "active" {
			allActive = false
		}
		if status == "error" || status == "blocked" {
			detail, _ := entry["detailed-status"].(string)
			errorText = append(errorText, fmt.Sprintf("member_vnf_index=%s %s: %s", idx, status, detail))
		}
	}

	nsrUpdate := map[string]interface{}{}
	nslcmopUpdate := map[string]interface{}{"statusEnteredTime": model.Now().Unix()}

	switch {
	case allActive && len(vca) > 0:
		nsrUpdate["config-status"] = "configured"
		nsrUpdate["detailed-status"] = "done"
		nslcmopUpdate["operationState"] = model.OpStateCompleted
		nslcmopUpdate["detailed-status"] = "Done"
	case len(errorText) > 0:
		sort.Strings(errorText)
		nsrUpdate["config-status"] = "failed"
		nsrUpdate["detailed-status"] = "fail configuring " + strings.Join(errorText, ";")
		nslcmopUpdate["operationState"] = model.OpStateFailedTemp
	default:
		var parts []string
		keys := make([]string, 0, len(statusCount))
		for k := range statusCount {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %d", k, statusCount[k]))
		}
		cs := "configuring: " + strings.Join(parts, ", ")
		nsrUpdate["config-status"] = cs
		nsrUpdate["detailed-status"] = cs
	}

	// Persist the per-VNF VCA entry mutation made by the caller before
	// this aggregation ran, then the derived NS-level fields.
	nsrUpdate["_admin.deployed"] = deployed
	if err := w.C.Db.SetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID}, nsrUpdate); err != nil {
		log.WithError(err).Error("vca_callback: failed to update nsr")
	}
	w.writeNslcmop(ctx, nslcmopID, nslcmopUpdate, log)
}

func (w *Workflows) writeNslcmop(ctx context.Context, nslcmopID string, update map[string]interface{}, log *logrus.Entry) {
	if err := w.C.Db.SetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID}, update); err != nil {
		log.WithError(err).Error("vca_callback: failed to update nslcmop")
	}
}

func currentVCAStatus(nsrDoc map[string]interface{}, memberVnfIndex string) string {
	admin, _ := nsrDoc["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	vca, _ := deployed["VCA"].(map[string]interface{})
	entry, _ := vca[memberVnfIndex].(map[string]interface{})
	status, _ := entry["operational-status"].(string)
	return status
}

func setVCAEntryStatus(nsrDoc map[string]interface{}, memberVnfIndex, status, detail string) {
	admin, _ := nsrDoc["_admin"].(map[string]interface{})
	if admin == nil {
		admin = map[string]interface{}{}
		nsrDoc["_admin"] = admin
	}
	deployed, _ := admin["deployed"].(map[string]interface{})
	if deployed == nil {
		deployed = map[string]interface{}{}
		admin["deployed"] = deployed
	}
	vca, _ := deployed["VCA"].(map[string]interface{})
	if vca == nil {
		vca = map[string]interface{}{}
		deployed["VCA"] = vca
	}
	entry, _ := vca[memberVnfIndex].(map[string]interface{})
	if entry == nil {
		entry = map[string]interface{}{}
		vca[memberVnfIndex] = entry
	}
	entry["operational-status"] = status
	entry["detailed-status"] = detail
}
