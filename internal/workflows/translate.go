package workflows

import (
	"context"
	"fmt"
	"io"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/lcmerrors"
)

// idPrefixLimit is the number of characters of an entity id RO's
// osm_id filter keeps, matching the original's vnfd_id[:200] /
// osm_id truncation.
const idPrefixLimit = 200

// osmID builds the RO-side idempotency key for a VNFD registered
// under a given NS instance, truncated the same way the original
// truncates vnfd_id to 200 characters before using it as osm_id.
func osmID(nsrID, vnfdID string) string {
	if len(vnfdID) > idPrefixLimit {
		vnfdID = vnfdID[:idPrefixLimit]
	}
	return nsrID + "." + vnfdID
}

// vnfd2RO converts a VNFD document into the shape RO expects: strip
// the local-only _id/_admin bag, optionally stamp a new id, and
// inline every VDU's cloud-init-file into a cloud-init field by
// reading it off the Fs collaborator.
func vnfd2RO(ctx context.Context, f fs.Fs, vnfd map[string]interface{}, newID string) (map[string]interface{}, error) {
	out := deepCopyMap(vnfd)
	delete(out, "_id")
	admin, _ := out["_admin"].(map[string]interface{})
	delete(out, "_admin")
	if newID != "" {
		out["id"] = newID
	}

	vdus, _ := out["vdu"].([]interface{})
	for _, v := range vdus {
		vdu, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		ciFile, ok := vdu["cloud-init-file"].(string)
		if !ok || ciFile == "" {
			continue
		}
		content, err := readCloudInit(f, admin, ciFile)
		if err != nil {
			return nil, lcmerrors.Newf("vnfd2RO", "reading file at vnfd %v: %s", out["id"], err)
		}
		delete(vdu, "cloud-init-file")
		vdu["cloud-init"] = content
	}
	return out, nil
}

func readCloudInit(f fs.Fs, admin map[string]interface{}, fileName string) (string, error) {
	storage, _ := admin["storage"].(map[string]interface{})
	folder, _ := storage["folder"].(string)
	pkgDir, _ := storage["pkg-dir"].(string)
	path := fmt.Sprintf("%s/%s/cloud_init/%s", folder, pkgDir, fileName)

	rc, err := f.FileOpen(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// vimAccountResolver looks up a VIM account's RO-side id, memoizing
// per ns_params_2_RO call the way the original's closure-scoped
// vim_2_RO cache does, and rejecting accounts that aren't ENABLED.
type vimAccountResolver struct {
	cache map[string]string
	lookup func(vimAccountID string) (roID string, operationalState string, err error)
}

func newVimAccountResolver(lookup func(string) (string, string, error)) *vimAccountResolver {
	return &vimAccountResolver{cache: make(map[string]string), lookup: lookup}
}

func (r *vimAccountResolver) resolve(vimAccountID string) (string, error) {
	if roID, ok := r.cache[vimAccountID]; ok {
		return roID, nil
	}
	roID, state, err := r.lookup(vimAccountID)
	if err != nil {
		return "", err
	}
	if state != "ENABLED" {
		return "", lcmerrors.Newf("ns_params_2_RO", "VIM account %s is not ENABLED", vimAccountID)
	}
	r.cache[vimAccountID] = roID
	return roID, nil
}

// nsParamsToRO converts NS instantiate-time parameters into the shape
// RO's scenario-create call expects: a default datacenter, per-VNF
// datacenter overrides, and per-VLD network site mappings.
func nsParamsToRO(nsParams map[string]interface{}, resolveVim func(vimAccountID string) (roID, operationalState string, err error)) (map[string]interface{}, error) {
	if nsParams == nil {
		return nil, nil
	}
	resolver := newVimAccountResolver(resolveVim)

	out := map[string]interface{}{
		"vnfs":     map[string]interface{}{},
		"networks": map[string]interface{}{},
	}

	if vimAccountID, ok := nsParams["vimAccountId"].(string); ok && vimAccountID != "" {
		dc, err := resolver.resolve(vimAccountID)
		if err != nil {
			return nil, err
		}
		out["datacenter"] = dc
	}

	if cloudConfig, ok := nsParams["cloud-config"].(map[string]interface{}); ok {
		if keyPairs, ok := cloudConfig["ssh-authorized-key"]; ok {
			out["cloud-config"] = map[string]interface{}{"key-pairs": keyPairs}
		}
	}

	vnfs, _ := nsParams["vnf"].([]interface{})
	vnfsOut := out["vnfs"].(map[string]interface{})
	for _, v := range vnfs {
		vnf, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		memberIndex, _ := vnf["member-vnf-index"].(string)
		if vimAccountID, ok := vnf["vimAccountId"].(string); ok && vimAccountID != "" {
			dc, err := resolver.resolve(vimAccountID)
			if err != nil {
				return nil, err
			}
			vnfsOut[memberIndex] = map[string]interface{}{"datacenter": dc}
		}
	}

	vlds, _ := nsParams["vld"].([]interface{})
	networksOut := out["networks"].(map[string]interface{})
	for _, v := range vlds {
		vld, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := vld["name"].(string)
		netEntry := map[string]interface{}{}
		if ipProfile, ok := vld["ip-profile"]; ok {
			netEntry["ip-profile"] = ipProfile
		}
		switch vimNet := vld["vim-network-name"].(type) {
		case map[string]interface{}:
			var sites []interface{}
			for vimAccountID, netName := range vimNet {
				dc, err := resolver.resolve(vimAccountID)
				if err != nil {
					return nil, err
				}
				sites = append(sites, map[string]interface{}{
					"netmap-use": netName, "datacenter": dc,
				})
			}
			netEntry["sites"] = sites
		case string:
			netEntry["sites"] = []interface{}{map[string]interface{}{"netmap-use": vimNet}}
		}
		networksOut[name] = netEntry
	}

	return out, nil
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
