package workflows

import (
	"context"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/model"
)

// actionTimeout bounds how long NsAction waits for a day-2 primitive
// to finish, matching the original's asyncio.wait(..., timeout=300).
const actionTimeout = 300 * time.Second

// NsAction runs a day-2 primitive against an already-deployed charm,
// a direct port of ns_action.
func (w *Workflows) NsAction(ctx context.Context, nsrID, nslcmopID string) {
	log := w.logWith(map[string]interface{}{"workflow": "ns_action", "nsr_id": nsrID, "nslcmop_id": nslcmopID})
	start := time.Now()

	nsr, err := w.C.Db.GetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	if err != nil {
		log.WithError(err).Error("ns_action: failed to load nsr")
		return
	}
	nslcmop, err := w.C.Db.GetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID})
	if err != nil {
		log.WithError(err).Error("ns_action: failed to load nslcmop")
		return
	}

	params, _ := nslcmop["operationParams"].(map[string]interface{})
	memberIndex, _ := params["member_vnf_index"].(string)
	primitive, _ := params["primitive"].(string)
	primitiveParams, _ := params["primitive_params"].(map[string]interface{})

	admin, _ := nsr["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	vca, _ := deployed["VCA"].(map[string]interface{})
	entry, _ := vca[memberIndex].(map[string]interface{})

	var result, resultDetail string
	var workErr error

	if entry == nil {
		workErr = lcmerrors.Newf("ns_action", "charm for member_vnf_index=%s is not deployed", memberIndex)
	} else {
		model_, _ := entry["model"].(string)
		application, _ := entry["application"].(string)
		opStatus, _ := entry["operational-status"].(string)
		if model_ == "" || application == "" {
			workErr = lcmerrors.Newf("ns_action", "charm for member_vnf_index=%s is not properly deployed", memberIndex)
		} else if opStatus != "active" {
			workErr = lcmerrors.Newf("ns_action", "charm for member_vnf_index=%s operational_status=%s not 'active'", memberIndex, opStatus)
		} else if err := w.C.VCA.Login(ctx); err != nil {
			workErr = lcmerrors.New("ns_action", err)
		} else {
			actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
			defer cancel()
			_, execErr := w.C.VCA.ExecutePrimitive(actionCtx, model_, application, primitive, primitiveParams)
			switch {
			case ctx.Err() != nil:
				resultDetail = "Task has been cancelled"
			case actionCtx.Err() != nil:
				resultDetail = "timeout"
			case execErr != nil:
				resultDetail = execErr.Error()
			default:
				result = model.OpStateCompleted
				resultDetail = "Done"
			}
		}
	}

	if ctx.Err() != nil {
		log.Debug("ns_action cancelled")
		return
	}

	if workErr != nil {
		resultDetail = workErr.Error()
	}
	if result == "" {
		result = model.OpStateFailed
	}

	nslcmopUpdate := map[string]interface{}{
		"detailed-status":   resultDetail,
		"operationState":    result,
		"statusEnteredTime": model.Now().Unix(),
	}
	if err := w.C.Db.SetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID}, nslcmopUpdate); err != nil {
		log.WithError(err).Error("ns_action: failed to update nslcmop")
	}
	observeDuration(w.C.Metrics, "ns_action", outcomeOf(workErr), time.Since(start).Seconds())
}
