package workflows

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
)

func TestOsmIDTruncatesTo200Chars(t *testing.T) {
	long := strings.Repeat("x", 250)
	id := osmID("nsr-1", long)
	assert.Len(t, id, len("nsr-1.")+idPrefixLimit)
	assert.True(t, strings.HasPrefix(id, "nsr-1."))
}

func TestOsmIDUnderLimitIsUnchanged(t *testing.T) {
	id := osmID("nsr-1", "vnfd-a")
	assert.Equal(t, "nsr-1.vnfd-a", id)
}

func TestVnfd2ROStripsLocalFieldsAndInlinesCloudInit(t *testing.T) {
	memfs := fs.NewMemoryFs()
	memfs.Put("pkgs/vnfd-a/cloud_init/init.sh", []byte("#!/bin/sh\necho hi\n"))

	vnfd := map[string]interface{}{
		"_id":    "mongo-id",
		"id":     "vnfd-a",
		"_admin": map[string]interface{}{"storage": map[string]interface{}{"folder": "pkgs", "pkg-dir": "vnfd-a"}},
		"vdu": []interface{}{
			map[string]interface{}{"id": "vdu1", "cloud-init-file": "init.sh"},
		},
	}

	out, err := vnfd2RO(context.Background(), memfs, vnfd, "nsr-1.vnfd-a")
	require.NoError(t, err)
	assert.NotContains(t, out, "_id")
	assert.NotContains(t, out, "_admin")
	assert.Equal(t, "nsr-1.vnfd-a", out["id"])

	vdus := out["vdu"].([]interface{})
	vdu := vdus[0].(map[string]interface{})
	assert.NotContains(t, vdu, "cloud-init-file")
	assert.Equal(t, "#!/bin/sh\necho hi\n", vdu["cloud-init"])
}

func TestVnfd2ROMissingCloudInitFileFails(t *testing.T) {
	memfs := fs.NewMemoryFs()
	vnfd := map[string]interface{}{
		"id":     "vnfd-a",
		"_admin": map[string]interface{}{"storage": map[string]interface{}{"folder": "pkgs", "pkg-dir": "vnfd-a"}},
		"vdu": []interface{}{
			map[string]interface{}{"id": "vdu1", "cloud-init-file": "missing.sh"},
		},
	}
	_, err := vnfd2RO(context.Background(), memfs, vnfd, "")
	assert.Error(t, err)
}

func TestNsParamsToROResolvesDatacenterAndRejectsDisabledVim(t *testing.T) {
	resolve := func(vimAccountID string) (string, string, error) {
		if vimAccountID == "vim-ok" {
			return "ro-vim-1", "ENABLED", nil
		}
		return "ro-vim-2", "ERROR", nil
	}

	out, err := nsParamsToRO(map[string]interface{}{"vimAccountId": "vim-ok"}, resolve)
	require.NoError(t, err)
	assert.Equal(t, "ro-vim-1", out["datacenter"])

	_, err = nsParamsToRO(map[string]interface{}{"vimAccountId": "vim-disabled"}, resolve)
	assert.Error(t, err)
}

func TestNsParamsToROPerVnfAndVldMapping(t *testing.T) {
	resolve := func(vimAccountID string) (string, string, error) {
		return "ro-" + vimAccountID, "ENABLED", nil
	}

	nsParams := map[string]interface{}{
		"vimAccountId": "default-vim",
		"vnf": []interface{}{
			map[string]interface{}{"member-vnf-index": "1", "vimAccountId": "vim-a"},
		},
		"vld": []interface{}{
			map[string]interface{}{"name": "mgmt", "vim-network-name": "mgmt-net"},
			map[string]interface{}{"name": "data", "vim-network-name": map[string]interface{}{"vim-b": "data-net"}},
		},
	}

	out, err := nsParamsToRO(nsParams, resolve)
	require.NoError(t, err)

	vnfs := out["vnfs"].(map[string]interface{})
	vnf1 := vnfs["1"].(map[string]interface{})
	assert.Equal(t, "ro-vim-a", vnf1["datacenter"])

	networks := out["networks"].(map[string]interface{})
	mgmt := networks["mgmt"].(map[string]interface{})
	mgmtSites := mgmt["sites"].([]interface{})
	require.Len(t, mgmtSites, 1)
	assert.Equal(t, "mgmt-net", mgmtSites[0].(map[string]interface{})["netmap-use"])

	data := networks["data"].(map[string]interface{})
	dataSites := data["sites"].([]interface{})
	require.Len(t, dataSites, 1)
	assert.Equal(t, "ro-vim-b", dataSites[0].(map[string]interface{})["datacenter"])
}
