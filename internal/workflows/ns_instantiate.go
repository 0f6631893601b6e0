package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/model"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/ro"
)

// nsDeploymentTimeout bounds how long the RO poll loop in phase 6 will
// wait for a scenario instance to reach ACTIVE, matching the
// original's 2-hour deployment_timeout.
const nsDeploymentTimeout = 2 * time.Hour
const nsPollInterval = 5 * time.Second

// NsInstantiate drives an NS instance through descriptor registration,
// RO scenario creation, a bounded poll for readiness, and a VCA charm
// deploy fan-out — the nine phases of the original's ns_instantiate,
// cooperatively cancellable at every suspension point. orderID is the
// dispatch order this instantiate runs under, used to name the charm
// deploy tasks it registers.
func (w *Workflows) NsInstantiate(ctx context.Context, nsrID, nslcmopID string, orderID int64) {
	log := w.logWith(map[string]interface{}{"workflow": "ns_instantiate", "nsr_id": nsrID, "nslcmop_id": nslcmopID})
	start := time.Now()

	nsr, err := w.C.Db.GetOne(ctx, nsrsCollection, map[string]interface{}{"_id": nsrID})
	if err != nil {
		log.WithError(err).Error("ns_instantiate: failed to load nsr")
		return
	}
	nslcmop, err := w.C.Db.GetOne(ctx, nslcmopsCollection, map[string]interface{}{"_id": nslcmopID})
	if err != nil {
		log.WithError(err).Error("ns_instantiate: failed to load nslcmop")
		return
	}

	admin, _ := nsr["_admin"].(map[string]interface{})
	if admin == nil {
		admin = map[string]interface{}{}
		nsr["_admin"] = admin
	}
	deployed, _ := admin["deployed"].(map[string]interface{})
	if deployed == nil {
		deployed = map[string]interface{}{
			"RO":       map[string]interface{}{"id": nsrID, "vnfd_id": map[string]interface{}{}, "nsd_id": nil, "nsr_id": nil, "nsr_status": ro.NsStatusScheduled},
			"nsr_ip":   map[string]interface{}{},
			"VCA":      map[string]interface{}{},
		}
		admin["deployed"] = deployed
	}
	nsr["detailed-status"] = "creating"
	nsr["operational-status"] = "init"
	_ = w.persistNsr(ctx, nsr)

	var step string
	var workErr error

	func() {
		roBag, _ := deployed["RO"].(map[string]interface{})

		step = "loading descriptors"
		nsdDoc, vnfdDocs, err := w.loadDescriptors(ctx, nsr)
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}

		if ctx.Err() != nil {
			return
		}
		step = "registering vnfds at RO"
		vnfdIDMap, _ := roBag["vnfd_id"].(map[string]interface{})
		if vnfdIDMap == nil {
			vnfdIDMap = map[string]interface{}{}
			roBag["vnfd_id"] = vnfdIDMap
		}
		for vnfdID, vnfdDoc := range vnfdDocs {
			if ctx.Err() != nil {
				return
			}
			roID, err := w.registerVnfd(ctx, nsrID, vnfdID, vnfdDoc)
			if err != nil {
				workErr = lcmerrors.New(step, err)
				return
			}
			vnfdIDMap[vnfdID] = roID
			_ = w.persistNsr(ctx, nsr)
		}
		if workErr != nil {
			return
		}

		if ctx.Err() != nil {
			return
		}
		step = "registering nsd at RO"
		nsdRoID, err := w.registerNsd(ctx, nsrID, nsdDoc, vnfdIDMap)
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		roBag["nsd_id"] = nsdRoID
		_ = w.persistNsr(ctx, nsr)

		if ctx.Err() != nil {
			return
		}
		step = "creating ns at RO"
		nsRoID, err := w.createOrRecoverNs(ctx, nsr, nslcmop, nsdRoID)
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		roBag["nsr_id"] = nsRoID
		roBag["nsr_status"] = ro.NsStatusBuild
		_ = w.persistNsr(ctx, nsr)

		if ctx.Err() != nil {
			return
		}
		step = "backfilling vim-account-id"
		if err := w.backfillVimAccountID(ctx, nsrID, nslcmop); err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}

		if ctx.Err() != nil {
			return
		}
		step = "waiting for ns to become active"
		lastDetail := ""
		status, err := w.C.RO.WaitForNsActive(ctx, nsRoID, nsDeploymentTimeout, nsPollInterval, func(s ro.NsStatus) {
			if s.Detail != lastDetail {
				lastDetail = s.Detail
				nsr["detailed-status"] = s.Detail
				_ = w.persistNsr(ctx, nsr)
			}
		})
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		roBag["nsr_status"] = status.Status

		if ctx.Err() != nil {
			return
		}
		step = "enriching vnf records"
		vnfInfo, err := w.C.RO.GetNsVnfInfo(ctx, nsRoID)
		for deadline := time.Now().Add(nsDeploymentTimeout); err != nil && time.Now().Before(deadline); {
			if roErr, ok := lcmerrors.IsROError(err); !ok || !roErr.Conflict() {
				break
			}
			// 409: RO has not published the VNF addresses yet.
			select {
			case <-ctx.Done():
				return
			case <-time.After(nsPollInterval):
			}
			vnfInfo, err = w.C.RO.GetNsVnfInfo(ctx, nsRoID)
		}
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		if err := w.enrichVnfrs(ctx, nsrID, vnfInfo, deployed); err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}
		_ = w.persistNsr(ctx, nsr)

		if ctx.Err() != nil {
			return
		}
		step = "deploying charms"
		numberToConfigure, err := w.deployCharms(ctx, nsrID, nslcmopID, orderID, nsr, nsdDoc)
		if err != nil {
			workErr = lcmerrors.New(step, err)
			return
		}

		if numberToConfigure > 0 {
			nsr["config-status"] = "configuring"
			detail := fmt.Sprintf("configuring: init: %d", numberToConfigure)
			nsr["detailed-status"] = detail
			nslcmop["detailed-status"] = detail
		} else {
			nslcmop["operationState"] = model.OpStateCompleted
			nslcmop["detailed-status"] = "done"
			nsr["config-status"] = "configured"
			nsr["detailed-status"] = "done"
		}
		nsr["operational-status"] = "running"
	}()

	if ctx.Err() != nil {
		log.Debug("ns_instantiate cancelled")
		return
	}

	if workErr != nil {
		nsr["detailed-status"] = "ERROR " + step + ": " + workErr.Error()
		nsr["operational-status"] = "failed"
		nslcmop["detailed-status"] = "FAILED " + step + ": " + workErr.Error()
		nslcmop["operationState"] = model.OpStateFailed
		log.WithError(workErr).Error("ns_instantiate failed")
	}
	nslcmop["statusEnteredTime"] = model.Now().Unix()
	_ = w.persistNsr(ctx, nsr)
	_ = w.persistNslcmop(ctx, nslcmop)
	observeDuration(w.C.Metrics, "ns_instantiate", outcomeOf(workErr), time.Since(start).Seconds())
}

func (w *Workflows) loadDescriptors(ctx context.Context, nsr map[string]interface{}) (nsd map[string]interface{}, vnfds map[string]map[string]interface{}, err error) {
	nsdID, _ := nsr["nsd-id"].(string)
	nsd, err = w.C.Db.GetOne(ctx, "nsds", map[string]interface{}{"_id": nsdID})
	if err != nil {
		return nil, nil, err
	}
	vnfds = map[string]map[string]interface{}{}
	constituents, _ := nsd["constituent-vnfd"].([]interface{})
	for _, c := range constituents {
		entry, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		vnfdIDRef, _ := entry["vnfd-id-ref"].(string)
		if _, ok := vnfds[vnfdIDRef]; ok {
			continue
		}
		vnfdDoc, err := w.C.Db.GetOne(ctx, "vnfds", map[string]interface{}{"id": vnfdIDRef})
		if err != nil {
			return nil, nil, err
		}
		vnfds[vnfdIDRef] = vnfdDoc
	}
	return nsd, vnfds, nil
}

// registerVnfd reuses an existing RO registration for this (nsr,
// vnfd) pair if one is already present (looked up by RO's osm_id
// filter), otherwise translates and creates it.
func (w *Workflows) registerVnfd(ctx context.Context, nsrID, vnfdID string, vnfdDoc map[string]interface{}) (string, error) {
	osm := osmID(nsrID, vnfdID)
	existing, err := w.C.RO.GetList(ctx, "vnfd", map[string]string{"osm_id": osm})
	if err == nil && len(existing) > 0 {
		if uuid, ok := existing[0]["uuid"].(string); ok {
			return uuid, nil
		}
	}
	vnfdRO, err := vnfd2RO(ctx, w.C.Fs, vnfdDoc, osm)
	if err != nil {
		return "", err
	}
	item, err := w.C.RO.Create(ctx, "vnfd", vnfdRO, nil)
	if err != nil {
		return "", err
	}
	uuid, _ := item["uuid"].(string)
	return uuid, nil
}

func (w *Workflows) registerNsd(ctx context.Context, nsrID string, nsdDoc map[string]interface{}, vnfdIDMap map[string]interface{}) (string, error) {
	nsdID, _ := nsdDoc["id"].(string)
	osm := osmID(nsrID, nsdID)
	existing, err := w.C.RO.GetList(ctx, "nsd", map[string]string{"osm_id": osm})
	if err == nil && len(existing) > 0 {
		if uuid, ok := existing[0]["uuid"].(string); ok {
			return uuid, nil
		}
	}

	nsdRO := deepCopyMap(nsdDoc)
	delete(nsdRO, "_id")
	delete(nsdRO, "_admin")
	nsdRO["id"] = osm

	constituents, _ := nsdRO["constituent-vnfd"].([]interface{})
	for _, c := range constituents {
		entry, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		ref, _ := entry["vnfd-id-ref"].(string)
		if roID, ok := vnfdIDMap[ref].(string); ok {
			entry["vnfd-id-ref"] = roID
		}
	}

	item, err := w.C.RO.Create(ctx, "nsd", nsdRO, nil)
	if err != nil {
		return "", err
	}
	uuid, _ := item["uuid"].(string)
	return uuid, nil
}

func (w *Workflows) createOrRecoverNs(ctx context.Context, nsr, nslcmop map[string]interface{}, nsdRoID string) (string, error) {
	admin, _ := nsr["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	roBag, _ := deployed["RO"].(map[string]interface{})

	if existingID, ok := roBag["nsr_id"].(string); ok && existingID != "" {
		item, err := w.C.RO.Show(ctx, "ns", existingID)
		if err != nil {
			if roErr, ok := lcmerrors.IsROError(err); ok && roErr.NotFound() {
				// fall through to create a fresh one below.
			} else {
				return "", err
			}
		} else {
			status := ro.CheckNsStatus(item)
			if status.Status == ro.NsStatusError {
				_ = w.C.RO.Delete(ctx, "ns", existingID)
			} else {
				return existingID, nil
			}
		}
	}

	nsParams, _ := nslcmop["operationParams"].(map[string]interface{})
	resolveVim := func(vimAccountID string) (string, string, error) {
		vimDoc, err := w.C.Db.GetOne(ctx, vimAccountsCollection, map[string]interface{}{"_id": vimAccountID})
		if err != nil {
			return "", "", err
		}
		return deployedRoID(vimDoc), fmt.Sprintf("%v", vimDoc["operationalState"]), nil
	}
	roParams, err := nsParamsToRO(nsParams, resolveVim)
	if err != nil {
		return "", err
	}

	name, _ := nsr["name"].(string)
	item, err := w.C.RO.Create(ctx, "ns", roParams, map[string]interface{}{"name": name, "scenario": nsdRoID})
	if err != nil {
		return "", err
	}
	uuid, _ := item["uuid"].(string)
	return uuid, nil
}

// backfillVimAccountID fills in vim-account-id on any VNF record that
// doesn't already have one, preferring a per-VNF override from
// instantiate_params.vnf[idx].vimAccountId and falling back to the
// top-level instantiate_params.vimAccountId, phase 5 of the original's
// ns_instantiate.
func (w *Workflows) backfillVimAccountID(ctx context.Context, nsrID string, nslcmop map[string]interface{}) error {
	nsParams, _ := nslcmop["operationParams"].(map[string]interface{})
	topLevel, _ := nsParams["vimAccountId"].(string)

	perVnf := map[string]string{}
	vnfs, _ := nsParams["vnf"].([]interface{})
	for _, v := range vnfs {
		vnf, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		memberIndex, _ := vnf["member-vnf-index"].(string)
		if vimAccountID, ok := vnf["vimAccountId"].(string); ok && vimAccountID != "" {
			perVnf[memberIndex] = vimAccountID
		}
	}

	vnfrs, err := w.C.Db.GetList(ctx, "vnfrs", map[string]interface{}{"nsr-id-ref": nsrID})
	if err != nil {
		return err
	}
	for _, vnfr := range vnfrs {
		if existing, ok := vnfr["vim-account-id"].(string); ok && existing != "" {
			continue
		}
		memberIndex, _ := vnfr["member-vnf-index-ref"].(string)
		vimAccountID := perVnf[memberIndex]
		if vimAccountID == "" {
			vimAccountID = topLevel
		}
		if vimAccountID == "" {
			continue
		}
		vnfr["vim-account-id"] = vimAccountID
		id, _ := vnfr["_id"].(string)
		if err := w.C.Db.Replace(ctx, "vnfrs", id, vnfr); err != nil {
			return err
		}
	}
	return nil
}

// enrichVnfrs copies per-VNF IP and per-VDU vim-id/IP from RO's
// vnf-info response into the local VNF records, and writes the
// redesigned, consistently-populated nsr_ip map (see SPEC_FULL.md
// §5.2 item 2).
func (w *Workflows) enrichVnfrs(ctx context.Context, nsrID string, vnfInfo map[string]interface{}, deployed map[string]interface{}) error {
	nsrIP, _ := deployed["nsr_ip"].(map[string]interface{})
	if nsrIP == nil {
		nsrIP = map[string]interface{}{}
		deployed["nsr_ip"] = nsrIP
	}

	vnfrs, err := w.C.Db.GetList(ctx, "vnfrs", map[string]interface{}{"nsr-id-ref": nsrID})
	if err != nil {
		return err
	}
	for _, vnfr := range vnfrs {
		memberIndex, _ := vnfr["member-vnf-index-ref"].(string)
		info, ok := vnfInfo[memberIndex].(map[string]interface{})
		if !ok {
			continue
		}
		if ip, ok := info["ip_address"].(string); ok {
			vnfr["ip-address"] = ip
			nsrIP[memberIndex] = ip
		}
		vdus, _ := info["vdur"].([]interface{})
		localVdus, _ := vnfr["vdur"].([]interface{})
		for _, lv := range localVdus {
			localVdu, ok := lv.(map[string]interface{})
			if !ok {
				continue
			}
			vduIDRef, _ := localVdu["vdu-id-ref"].(string)
			for _, rv := range vdus {
				remoteVdu, ok := rv.(map[string]interface{})
				if !ok {
					continue
				}
				if remoteVdu["vdu-id-ref"] == vduIDRef {
					localVdu["vim-id"] = remoteVdu["vim_id"]
					localVdu["ip-address"] = remoteVdu["ip_address"]
				}
			}
		}
		id, _ := vnfr["_id"].(string)
		if err := w.C.Db.Replace(ctx, "vnfrs", id, vnfr); err != nil {
			return err
		}
	}
	return nil
}

// deployCharms fans out one DeployCharm call per charm named in the
// vnf-configuration/vdu-configuration juju blocks of each constituent
// VNFD the NSD lists, registering
// each under the task registry's "create_charm:<member-vnf-index>"
// key and wiring its outcome into the aggregator. It returns the
// number of charms it started.
func (w *Workflows) deployCharms(ctx context.Context, nsrID, nslcmopID string, orderID int64, nsr map[string]interface{}, nsdDoc map[string]interface{}) (int, error) {
	if err := w.C.VCA.Login(ctx); err != nil {
		return 0, err
	}

	nsName, _ := nsr["name"].(string)
	admin, _ := nsr["_admin"].(map[string]interface{})
	deployed, _ := admin["deployed"].(map[string]interface{})
	vca, _ := deployed["VCA"].(map[string]interface{})
	if vca == nil {
		vca = map[string]interface{}{}
		deployed["VCA"] = vca
	}
	nsrIP, _ := deployed["nsr_ip"].(map[string]interface{})
	storage, _ := admin["storage"].(map[string]interface{})

	constituents, _ := nsdDoc["constituent-vnfd"].([]interface{})
	count := 0
	for _, c := range constituents {
		entry, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		memberIndex, _ := entry["member-vnf-index"].(string)
		vnfdIDRef, _ := entry["vnfd-id-ref"].(string)
		rwMgmtIP, _ := nsrIP[memberIndex].(string)

		vnfdDoc, err := w.C.Db.GetOne(ctx, "vnfds", map[string]interface{}{"id": vnfdIDRef})
		if err != nil {
			return count, err
		}

		if charm, cfg := charmConfig(vnfdDoc, "vnf-configuration"); charm != "" {
			if err := w.startCharmDeploy(ctx, nsrID, nslcmopID, orderID, nsName, memberIndex, vnfdIDRef, charm, rwMgmtIP, cfg["initial-config-primitive"], storage, vca); err != nil {
				return count, err
			}
			count++
		}
		vdus, _ := vnfdDoc["vdu"].([]interface{})
		for _, v := range vdus {
			vdu, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			if charm, cfg := charmConfig(vdu, "vdu-configuration"); charm != "" {
				if err := w.startCharmDeploy(ctx, nsrID, nslcmopID, orderID, nsName, memberIndex, vnfdIDRef, charm, rwMgmtIP, cfg["initial-config-primitive"], storage, vca); err != nil {
					return count, err
				}
				count++
			}
		}
	}
	return count, nil
}

// charmConfig returns the charm named under doc[key]'s juju block (if
// any) plus that same config map, so the caller can also pull
// initial-config-primitive out of it.
func charmConfig(doc map[string]interface{}, key string) (charm string, cfg map[string]interface{}) {
	cfg, ok := doc[key].(map[string]interface{})
	if !ok {
		return "", nil
	}
	juju, ok := cfg["juju"].(map[string]interface{})
	if !ok {
		return "", cfg
	}
	charm, _ = juju["charm"].(string)
	return charm, cfg
}

// startCharmDeploy registers a create_charm:<member-vnf-index> task
// under the registry and fires the DeployCharm call on a cancellable
// child of ctx, so a subsequent terminate's Registry.CancelAll reaches
// an in-flight deploy from a superseded instantiate order, matching
// the original's lcm_ns_tasks[nsr_id][nslcmop_id]["create_charm:"+vnf_index]
// bookkeeping. rwMgmtIP comes from the deployed nsr_ip map and
// initialConfigPrimitive from the vnf/vdu configuration block.
func (w *Workflows) startCharmDeploy(ctx context.Context, nsrID, nslcmopID string, orderID int64, nsName, memberIndex, vnfdID, charm, rwMgmtIP string, initialConfigPrimitive interface{}, storage map[string]interface{}, vca map[string]interface{}) error {
	folder, _ := storage["folder"].(string)
	pkgDir, _ := storage["pkg-dir"].(string)
	path, _ := storage["path"].(string)
	charmPath := fmt.Sprintf("%s%s/%s/charms/%s", path, folder, pkgDir, charm)

	appName := w.C.VCA.FormatApplicationName(nsName, memberIndex, vnfdID)
	vca[memberIndex] = map[string]interface{}{
		"model": "default", "application": appName,
		"operational-status": "init", "detailed-status": "", "vnfd_id": vnfdID,
	}
	w.registerApp(appName, nsrID, nslcmopID, memberIndex)

	params := map[string]interface{}{"rw_mgmt_ip": rwMgmtIP}
	if initialConfigPrimitive != nil {
		params["initial-config-primitive"] = initialConfigPrimitive
	}

	taskCtx, done := w.C.Registry.Register(ctx, registry.Key{Topic: "ns", EntityID: nsrID, OrderID: orderID, Name: "create_charm:" + memberIndex})
	go func() {
		defer done()
		err := w.C.VCA.DeployCharm(taskCtx, "default", appName, charmPath, params)
		w.HandleTaskOutcome(taskCtx, nsrID, nslcmopID, memberIndex, "instantiate", CallbackOutcome{
			Cancelled: taskCtx.Err() != nil,
			Err:       err,
		})
	}()
	return nil
}

func (w *Workflows) persistNsr(ctx context.Context, nsr map[string]interface{}) error {
	id, _ := nsr["_id"].(string)
	return w.C.Db.Replace(ctx, nsrsCollection, id, nsr)
}

func (w *Workflows) persistNslcmop(ctx context.Context, nslcmop map[string]interface{}) error {
	id, _ := nslcmop["_id"].(string)
	return w.C.Db.Replace(ctx, nslcmopsCollection, id, nslcmop)
}
