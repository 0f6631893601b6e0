package workflows

import (
	"context"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

const vimAccountsCollection = "vim_accounts"

// VimCreate registers a VIM account with RO and attaches its
// credentials as a datacenter association, a direct port of
// vim_create.
func (w *Workflows) VimCreate(ctx context.Context, vimContent map[string]interface{}, orderID int64) {
	vimID, _ := vimContent["_id"].(string)
	log := w.logWith(map[string]interface{}{"workflow": "vim_create", "vim_id": vimID, "order_id": orderID})
	start := time.Now()

	dbVim, err := w.C.Db.GetOne(ctx, vimAccountsCollection, map[string]interface{}{"_id": vimID})
	if err != nil {
		log.WithError(err).Error("vim_create: failed to load vim account")
		return
	}
	setAdminDeployedRO(dbVim, nil)

	var step string
	var workErr error
	func() {
		step = "checking sdn-controller"
		var roSdnID string
		if config, _ := dbVim["config"].(map[string]interface{}); config != nil {
			if sdnID, ok := config["sdn-controller"].(string); ok && sdnID != "" {
				sdnDoc, err := w.C.Db.GetOne(ctx, "sdns", map[string]interface{}{"_id": sdnID})
				if err != nil {
					workErr = lcmerrors.Newf(step, "sdn-controller=%s is not available: %s", sdnID, err)
					return
				}
				roSdnID = deployedRoID(sdnDoc)
				if roSdnID == "" {
					workErr = lcmerrors.Newf(step, "sdn-controller=%s is not available. Not deployed at RO", sdnID)
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}

		step = "creating vim at RO"
		vimRO := buildVimRO(dbVim, roSdnID)
		item, err := w.C.RO.Create(ctx, "vim", vimRO, nil)
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		roID, _ := item["uuid"].(string)
		setAdminDeployedRO(dbVim, &roID)
		_ = persistVim(ctx, w.C.Db, dbVim)

		if ctx.Err() != nil {
			return
		}

		step = "attaching datacenter"
		vimAccountRO := buildVimAccountRO(dbVim)
		if err := w.C.RO.AttachDatacenter(ctx, roID, vimAccountRO); err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
	}()

	if ctx.Err() != nil {
		log.Debug("vim_create cancelled")
		return
	}

	if workErr != nil {
		dbVim["operationalState"] = "ERROR"
		dbVim["detailed-status"] = "ERROR " + step + ": " + workErr.Error()
		log.WithError(workErr).Error("vim_create failed")
	} else {
		dbVim["operationalState"] = "ENABLED"
		dbVim["detailed-status"] = ""
	}
	_ = persistVim(ctx, w.C.Db, dbVim)
	observeDuration(w.C.Metrics, "vim_create", outcomeOf(workErr), time.Since(start).Seconds())
}

// VimEdit updates an existing VIM account's RO registration, a direct
// port of vim_edit: it only proceeds (and only issues the RO calls
// whose payload ended up non-empty) if the account was already
// deployed to RO.
func (w *Workflows) VimEdit(ctx context.Context, vimContent map[string]interface{}, orderID int64) {
	vimID, _ := vimContent["_id"].(string)
	log := w.logWith(map[string]interface{}{"workflow": "vim_edit", "vim_id": vimID, "order_id": orderID})
	start := time.Now()

	dbVim, err := w.C.Db.GetOne(ctx, vimAccountsCollection, map[string]interface{}{"_id": vimID})
	if err != nil {
		log.WithError(err).Error("vim_edit: failed to load vim account")
		return
	}
	roID := deployedRoID(dbVim)
	if roID == "" {
		log.Debug("vim_edit: not deployed at RO, nothing to edit")
		return
	}

	var step string
	var workErr error
	func() {
		step = "editing vim at RO"
		vimRO := buildVimRO(dbVim, "")
		if len(vimRO) > 0 {
			if _, err := w.C.RO.Edit(ctx, "vim", roID, vimRO); err != nil {
				workErr = lcmerrors.New(step, err)
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		step = "editing vim_account at RO"
		vimAccountRO := buildVimAccountRO(dbVim)
		if len(vimAccountRO) > 0 {
			if _, err := w.C.RO.Edit(ctx, "vim_account", roID, vimAccountRO); err != nil {
				workErr = lcmerrors.New(step, err)
				return
			}
		}
	}()

	if ctx.Err() != nil {
		log.Debug("vim_edit cancelled")
		return
	}

	if workErr != nil {
		dbVim["operationalState"] = "ERROR"
		dbVim["detailed-status"] = "ERROR " + step + ": " + workErr.Error()
		log.WithError(workErr).Error("vim_edit failed")
	} else {
		dbVim["operationalState"] = "ENABLED"
		dbVim["detailed-status"] = ""
	}
	_ = persistVim(ctx, w.C.Db, dbVim)
	observeDuration(w.C.Metrics, "vim_edit", outcomeOf(workErr), time.Since(start).Seconds())
}

// VimDelete detaches and deletes a VIM account's RO registration, then
// removes the local record — but only once RO confirms the delete (or
// reports the resource already gone). This is the redesigned
// behavior: the original deletes the local row unconditionally in the
// same try block that performs the RO calls, which can orphan RO
// state on a non-404 failure; see SPEC_FULL.md §5.2.
func (w *Workflows) VimDelete(ctx context.Context, vimID string, orderID int64) {
	log := w.logWith(map[string]interface{}{"workflow": "vim_delete", "vim_id": vimID, "order_id": orderID})
	start := time.Now()

	dbVim, err := w.C.Db.GetOne(ctx, vimAccountsCollection, map[string]interface{}{"_id": vimID})
	if err != nil {
		log.WithError(err).Error("vim_delete: failed to load vim account")
		return
	}
	roID := deployedRoID(dbVim)

	var step string
	var workErr error
	roSucceeded := roID == ""
	if roID != "" {
		step = "detaching datacenter"
		if err := w.C.RO.DetachDatacenter(ctx, roID); err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				log.Debug("vim_delete: datacenter already detached")
			} else {
				workErr = lcmerrors.New(step, err)
			}
		}

		if workErr == nil && ctx.Err() == nil {
			step = "deleting vim at RO"
			if err := w.C.RO.Delete(ctx, "vim", roID); err != nil {
				if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
					log.Debug("vim_delete: vim already deleted at RO")
					roSucceeded = true
				} else {
					workErr = lcmerrors.New(step, err)
				}
			} else {
				roSucceeded = true
			}
		}
	}

	if ctx.Err() != nil {
		log.Debug("vim_delete cancelled")
		return
	}

	if !roSucceeded {
		dbVim["operationalState"] = "ERROR"
		dbVim["detailed-status"] = "ERROR " + step + ": " + workErr.Error()
		_ = persistVim(ctx, w.C.Db, dbVim)
		log.WithError(workErr).Error("vim_delete failed, keeping local record for retry")
		observeDuration(w.C.Metrics, "vim_delete", "error", time.Since(start).Seconds())
		return
	}

	if err := w.C.Db.DelOne(ctx, vimAccountsCollection, map[string]interface{}{"_id": vimID}); err != nil {
		log.WithError(err).Error("vim_delete: failed to delete local record")
	}
	observeDuration(w.C.Metrics, "vim_delete", "ok", time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func setAdminDeployedRO(doc map[string]interface{}, roID *string) {
	admin, _ := doc["_admin"].(map[string]interface{})
	if admin == nil {
		admin = map[string]interface{}{}
		doc["_admin"] = admin
	}
	deployed, _ := admin["deployed"].(map[string]interface{})
	if deployed == nil {
		deployed = map[string]interface{}{}
		admin["deployed"] = deployed
	}
	if roID == nil {
		deployed["RO"] = nil
		return
	}
	deployed["RO"] = map[string]interface{}{"id": *roID}
}

func deployedRoID(doc map[string]interface{}) string {
	admin, _ := doc["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	ro, _ := deployed["RO"].(map[string]interface{})
	id, _ := ro["id"].(string)
	return id
}

// buildVimRO strips local-only fields from a VIM account document and
// renames vim_type to type, injecting an sdn-controller reference into
// config if roSdnID is non-empty.
func buildVimRO(dbVim map[string]interface{}, roSdnID string) map[string]interface{} {
	out := deepCopyMap(dbVim)
	for _, k := range []string{"_id", "_admin", "schema_version", "schema_type", "vim_tenant_name", "vim_user", "vim_password"} {
		delete(out, k)
	}
	if vimType, ok := out["vim_type"]; ok {
		out["type"] = vimType
		delete(out, "vim_type")
	}
	if roSdnID != "" {
		config, _ := out["config"].(map[string]interface{})
		if config == nil {
			config = map[string]interface{}{}
		}
		config["sdn-controller"] = roSdnID
		out["config"] = config
	}
	return out
}

// buildVimAccountRO extracts the credential fields RO's
// attach_datacenter/vim_account edit calls need, stripping the
// sdn-controller/sdn-port-mapping keys out of config the way the
// original does (those live on the vim payload, not the account
// payload).
func buildVimAccountRO(dbVim map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if v, ok := dbVim["vim_tenant_name"]; ok {
		out["vim_tenant_name"] = v
	}
	if v, ok := dbVim["vim_user"]; ok {
		out["vim_username"] = v
	}
	if v, ok := dbVim["vim_password"]; ok {
		out["vim_password"] = v
	}
	if config, ok := dbVim["config"].(map[string]interface{}); ok {
		strippedConfig := deepCopyMap(config)
		delete(strippedConfig, "sdn-controller")
		delete(strippedConfig, "sdn-port-mapping")
		if len(strippedConfig) > 0 {
			out["config"] = strippedConfig
		}
	}
	return out
}

func persistVim(ctx context.Context, database db.Db, dbVim map[string]interface{}) error {
	id, _ := dbVim["_id"].(string)
	return database.Replace(ctx, vimAccountsCollection, id, dbVim)
}
