package workflows

import (
	"context"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

const sdnsCollection = "sdns"

// SdnCreate registers an SDN controller with RO, a direct port of
// sdn_create (vim_create minus the attach_datacenter step).
func (w *Workflows) SdnCreate(ctx context.Context, sdnContent map[string]interface{}, orderID int64) {
	sdnID, _ := sdnContent["_id"].(string)
	log := w.logWith(map[string]interface{}{"workflow": "sdn_create", "sdn_id": sdnID, "order_id": orderID})
	start := time.Now()

	dbSdn, err := w.C.Db.GetOne(ctx, sdnsCollection, map[string]interface{}{"_id": sdnID})
	if err != nil {
		log.WithError(err).Error("sdn_create: failed to load sdn controller")
		return
	}
	setAdminDeployedRO(dbSdn, nil)

	step := "creating sdn at RO"
	sdnRO := buildSdnRO(dbSdn)
	item, err := w.C.RO.Create(ctx, "sdn", sdnRO, nil)

	if ctx.Err() != nil {
		log.Debug("sdn_create cancelled")
		return
	}

	if err != nil {
		dbSdn["operationalState"] = "ERROR"
		dbSdn["detailed-status"] = "ERROR " + step + ": " + err.Error()
		log.WithError(err).Error("sdn_create failed")
	} else {
		roID, _ := item["uuid"].(string)
		setAdminDeployedRO(dbSdn, &roID)
		dbSdn["operationalState"] = "ENABLED"
		dbSdn["detailed-status"] = ""
	}
	_ = persistSdn(ctx, w.C.Db, dbSdn)
	observeDuration(w.C.Metrics, "sdn_create", outcomeOf(err), time.Since(start).Seconds())
}

// SdnEdit updates an existing SDN controller's RO registration, a
// direct port of sdn_edit.
func (w *Workflows) SdnEdit(ctx context.Context, sdnContent map[string]interface{}, orderID int64) {
	sdnID, _ := sdnContent["_id"].(string)
	log := w.logWith(map[string]interface{}{"workflow": "sdn_edit", "sdn_id": sdnID, "order_id": orderID})
	start := time.Now()

	dbSdn, err := w.C.Db.GetOne(ctx, sdnsCollection, map[string]interface{}{"_id": sdnID})
	if err != nil {
		log.WithError(err).Error("sdn_edit: failed to load sdn controller")
		return
	}
	roID := deployedRoID(dbSdn)
	if roID == "" {
		log.Debug("sdn_edit: not deployed at RO, nothing to edit")
		return
	}

	step := "editing sdn at RO"
	sdnRO := buildSdnRO(dbSdn)
	var workErr error
	if len(sdnRO) > 0 {
		if _, err := w.C.RO.Edit(ctx, "sdn", roID, sdnRO); err != nil {
			workErr = lcmerrors.New(step, err)
		}
	}

	if ctx.Err() != nil {
		log.Debug("sdn_edit cancelled")
		return
	}

	if workErr != nil {
		dbSdn["operationalState"] = "ERROR"
		dbSdn["detailed-status"] = "ERROR " + step + ": " + workErr.Error()
		log.WithError(workErr).Error("sdn_edit failed")
	} else {
		dbSdn["operationalState"] = "ENABLED"
		dbSdn["detailed-status"] = ""
	}
	_ = persistSdn(ctx, w.C.Db, dbSdn)
	observeDuration(w.C.Metrics, "sdn_edit", outcomeOf(workErr), time.Since(start).Seconds())
}

// SdnDelete deletes an SDN controller's RO registration, then the
// local record — predicated on RO success or a 404, the same
// redesigned ordering as VimDelete (see SPEC_FULL.md §5.2).
func (w *Workflows) SdnDelete(ctx context.Context, sdnID string, orderID int64) {
	log := w.logWith(map[string]interface{}{"workflow": "sdn_delete", "sdn_id": sdnID, "order_id": orderID})
	start := time.Now()

	dbSdn, err := w.C.Db.GetOne(ctx, sdnsCollection, map[string]interface{}{"_id": sdnID})
	if err != nil {
		log.WithError(err).Error("sdn_delete: failed to load sdn controller")
		return
	}
	roID := deployedRoID(dbSdn)

	var workErr error
	roSucceeded := roID == ""
	if roID != "" {
		if err := w.C.RO.Delete(ctx, "sdn", roID); err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				log.Debug("sdn_delete: sdn already deleted at RO")
				roSucceeded = true
			} else {
				workErr = lcmerrors.New("deleting sdn at RO", err)
			}
		} else {
			roSucceeded = true
		}
	}

	if ctx.Err() != nil {
		log.Debug("sdn_delete cancelled")
		return
	}

	if !roSucceeded {
		dbSdn["operationalState"] = "ERROR"
		dbSdn["detailed-status"] = "ERROR deleting sdn at RO: " + workErr.Error()
		_ = persistSdn(ctx, w.C.Db, dbSdn)
		log.WithError(workErr).Error("sdn_delete failed, keeping local record for retry")
		observeDuration(w.C.Metrics, "sdn_delete", "error", time.Since(start).Seconds())
		return
	}

	if err := w.C.Db.DelOne(ctx, sdnsCollection, map[string]interface{}{"_id": sdnID}); err != nil {
		log.WithError(err).Error("sdn_delete: failed to delete local record")
	}
	observeDuration(w.C.Metrics, "sdn_delete", "ok", time.Since(start).Seconds())
}

// buildSdnRO strips local-only fields from an SDN controller document.
func buildSdnRO(dbSdn map[string]interface{}) map[string]interface{} {
	out := deepCopyMap(dbSdn)
	for _, k := range []string{"_id", "_admin", "schema_version", "schema_type", "description"} {
		delete(out, k)
	}
	return out
}

func persistSdn(ctx context.Context, database db.Db, dbSdn map[string]interface{}) error {
	id, _ := dbSdn["_id"].(string)
	return database.Replace(ctx, sdnsCollection, id, dbSdn)
}
