package workflows

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/model"
)

// vcaDrainTimeout bounds how long NsTerminate waits for outstanding
// charm removals before force-cancelling them, matching the
// original's asyncio.wait(vca_task_list, timeout=300).
const vcaDrainTimeout = 300 * time.Second

// NsTerminate tears down an NS instance's charms and RO resources
// (NS, NSD, then each VNFD, in that order) and reconciles the local
// record, a direct port of ns_terminate.
func (w *Workflows) NsTerminate(ctx context.Context, nsrID, nslcmopID string) {
	log := w.logWith(map[string]interface{}{"workflow": "ns_terminate", "nsr_id": nsrID, "nslcmop_id": nslcmopID})
	start := time.Now()

	nsr, err := w.C.Db.GetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	if err != nil {
		log.WithError(err).Error("ns_terminate: failed to load nsr")
		return
	}
	nslcmop, err := w.C.Db.GetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID})
	if err != nil {
		log.WithError(err).Error("ns_terminate: failed to load nslcmop")
		return
	}

	admin, _ := nsr["_admin"].(map[string]interface{})
	if state, _ := admin["nsState"].(string); state == "NOT_INSTANTIATED" {
		log.Debug("ns_terminate: already not instantiated")
		return
	}

	nsr["operational-status"] = "terminating"
	nsr["config-status"] = "terminating"
	nsr["detailed-status"] = "Deleting charms"
	_ = w.persistNsr(ctx, nsr)

	deployed, _ := admin["deployed"].(map[string]interface{})
	roBag, _ := deployed["RO"].(map[string]interface{})
	vca, _ := deployed["VCA"].(map[string]interface{})

	var failedDetail []string
	var mu sync.Mutex
	appendFailure := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		failedDetail = append(failedDetail, s)
	}

	drainCtx, cancelDrain := context.WithTimeout(ctx, vcaDrainTimeout)
	defer cancelDrain()

	type charmRemoval struct {
		memberIndex, appName string
	}
	var removals []charmRemoval
	for memberIndex, raw := range vca {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		appName, _ := entry["application"].(string)
		if appName == "" {
			continue
		}
		removals = append(removals, charmRemoval{memberIndex, appName})
	}

	outstanding := make(map[string]bool, len(removals))
	for _, r := range removals {
		outstanding[r.memberIndex] = true
	}

	var wg sync.WaitGroup
	for _, r := range removals {
		wg.Add(1)
		go func(memberIndex, appName string) {
			defer wg.Done()
			err := w.C.VCA.RemoveCharm(drainCtx, "default", appName)
			mu.Lock()
			delete(outstanding, memberIndex)
			mu.Unlock()
			if err != nil {
				appendFailure(fmt.Sprintf("member_vnf_index=%s charm removal: %s", memberIndex, err))
				log.WithError(err).Warn("ns_terminate: charm removal failed, continuing")
				return
			}
			mu.Lock()
			vca[memberIndex] = nil
			mu.Unlock()
		}(r.memberIndex, r.appName)
	}

	if nsID, ok := roBag["nsr_id"].(string); ok && nsID != "" {
		if err := w.C.RO.Delete(ctx, "ns", nsID); err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				roBag["nsr_id"] = nil
				roBag["nsr_status"] = "DELETED"
			} else if roErr != nil && roErr.Conflict() {
				appendFailure("ns busy: " + err.Error())
			} else {
				appendFailure("ns: " + err.Error())
			}
		} else {
			roBag["nsr_id"] = nil
			roBag["nsr_status"] = "DELETED"
		}
	}

	if nsdID, ok := roBag["nsd_id"].(string); ok && nsdID != "" {
		if err := w.C.RO.Delete(ctx, "nsd", nsdID); err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				roBag["nsd_id"] = nil
			} else {
				appendFailure("nsd: " + err.Error())
			}
		} else {
			roBag["nsd_id"] = nil
		}
	}

	vnfdIDMap, _ := roBag["vnfd_id"].(map[string]interface{})
	for vnfdID, raw := range vnfdIDMap {
		roID, _ := raw.(string)
		if roID == "" {
			continue
		}
		if err := w.C.RO.Delete(ctx, "vnfd", roID); err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				vnfdIDMap[vnfdID] = nil
			} else {
				appendFailure("vnfd " + vnfdID + ": " + err.Error())
			}
		} else {
			vnfdIDMap[vnfdID] = nil
		}
	}

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(vcaDrainTimeout):
		cancelDrain()
		mu.Lock()
		for memberIndex := range outstanding {
			failedDetail = append(failedDetail, fmt.Sprintf("member_vnf_index=%s charm removal: timed out waiting for drain", memberIndex))
		}
		mu.Unlock()
		log.Warn("ns_terminate: timed out waiting for charm removals, cancelling outstanding")
	}

	if ctx.Err() != nil {
		log.Debug("ns_terminate cancelled")
		return
	}

	var nsrUpdate, nslcmopUpdate map[string]interface{}
	autoremove := operationParamBool(nslcmop, "autoremove")

	switch {
	case len(failedDetail) > 0:
		joined := strings.Join(failedDetail, "; ")
		nsrUpdate = map[string]interface{}{
			"operational-status": "failed",
			"detailed-status":    "Deletion errors " + joined,
			"_admin.deployed":    deployed,
		}
		nslcmopUpdate = map[string]interface{}{
			"detailed-status":   joined,
			"operationState":    model.OpStateFailed,
			"statusEnteredTime": model.Now().Unix(),
		}
	case autoremove:
		// Redesigned: always write a final nslcmop status record
		// before deleting rows, so a caller polling nslcmop never hangs
		// past the delete (see SPEC_FULL.md §5.2 item 3).
		nslcmopUpdate = map[string]interface{}{
			"detailed-status":   "Done",
			"operationState":    model.OpStateCompleted,
			"statusEnteredTime": model.Now().Unix(),
		}
		_ = w.C.Db.SetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID}, nslcmopUpdate)
		w.autoremoveNs(ctx, nsrID, log)
		observeDuration(w.C.Metrics, "ns_terminate", "autoremoved", time.Since(start).Seconds())
		return
	default:
		nsrUpdate = map[string]interface{}{
			"operational-status": "terminated",
			"detailed-status":    "Done",
			"_admin.deployed":    deployed,
			"_admin.nsState":     "NOT_INSTANTIATED",
		}
		nslcmopUpdate = map[string]interface{}{
			"detailed-status":   "Done",
			"operationState":    model.OpStateCompleted,
			"statusEnteredTime": model.Now().Unix(),
		}
	}

	if err := w.C.Db.SetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID}, nsrUpdate); err != nil {
		log.WithError(err).Error("ns_terminate: failed to update nsr")
	}
	if err := w.C.Db.SetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID}, nslcmopUpdate); err != nil {
		log.WithError(err).Error("ns_terminate: failed to update nslcmop")
	}
	observeDuration(w.C.Metrics, "ns_terminate", outcomeOf(errFromFailedDetail(failedDetail)), time.Since(start).Seconds())
}

func operationParamBool(nslcmop map[string]interface{}, key string) bool {
	params, ok := nslcmop["operationParams"].(map[string]interface{})
	if !ok {
		return false
	}
	b, _ := params[key].(bool)
	return b
}

func errFromFailedDetail(detail []string) error {
	if len(detail) == 0 {
		return nil
	}
	return lcmerrors.Newf("ns_terminate", "%s", strings.Join(detail, "; "))
}

// autoremoveNs hard-deletes the nsr, its nslcmops, and its vnfrs,
// matching the original's autoremove path — except the nslcmop final
// status write above already happened, so a poller never observes a
// deleted-without-a-final-status operation.
func (w *Workflows) autoremoveNs(ctx context.Context, nsrID string, log *logrus.Entry) {
	log.Debug("ns_terminate: autoremove, hard-deleting nsr/nslcmops/vnfrs")
	_ = w.C.Db.DelOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	nslcmops, err := w.C.Db.GetList(ctx, nslcmopsCollection, map[string]interface{}{"nsInstanceId": nsrID})
	if err == nil {
		for _, op := range nslcmops {
			id, _ := op["_id"].(string)
			_ = w.C.Db.DelOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": id})
		}
	}
	vnfrs, err := w.C.Db.GetList(ctx, "vnfrs", map[string]interface{}{"nsr-id-ref": nsrID})
	if err == nil {
		for _, v := range vnfrs {
			id, _ := v["_id"].(string)
			_ = w.C.Db.DelOne(ctx, "vnfrs", map[string]interface{}{"_id": id})
		}
	}
}
