package workflows_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/ro"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/vca"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/workflows"
)

var _ = Describe("VimCreate", func() {
	var (
		stub *stubRO
		wf   *workflows.Workflows
		d    *db.MemoryDb
		ctx  context.Context
	)

	BeforeEach(func() {
		stub = newStubRO()
		d = db.NewMemoryDb()
		ctx = context.Background()

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:  d,
			Fs:  fs.NewMemoryFs(),
			RO:  roClient,
			VCA: vca.NewMockClient(),
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("registers the vim at RO, attaches the datacenter, and marks it ENABLED", func() {
		Expect(d.Replace(ctx, "vim_accounts", "vim-1", map[string]interface{}{
			"_id":             "vim-1",
			"vim_type":        "openstack",
			"vim_tenant_name": "tenant",
			"vim_user":        "user",
			"vim_password":    "pass",
		})).To(Succeed())

		wf.VimCreate(ctx, map[string]interface{}{"_id": "vim-1"}, 1)

		doc, err := d.GetOne(ctx, "vim_accounts", map[string]interface{}{"_id": "vim-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(doc["operationalState"]).To(Equal("ENABLED"))

		admin := doc["_admin"].(map[string]interface{})
		deployed := admin["deployed"].(map[string]interface{})
		roRef := deployed["RO"].(map[string]interface{})
		Expect(roRef["id"]).To(HavePrefix("vim-"))
	})

	It("marks the account ERROR when the sdn-controller reference cannot be resolved", func() {
		Expect(d.Replace(ctx, "vim_accounts", "vim-2", map[string]interface{}{
			"_id":      "vim-2",
			"vim_type": "openstack",
			"config":   map[string]interface{}{"sdn-controller": "missing-sdn"},
		})).To(Succeed())

		wf.VimCreate(ctx, map[string]interface{}{"_id": "vim-2"}, 1)

		doc, err := d.GetOne(ctx, "vim_accounts", map[string]interface{}{"_id": "vim-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(doc["operationalState"]).To(Equal("ERROR"))
		Expect(doc["detailed-status"]).To(ContainSubstring("sdn-controller"))
	})
})

var _ = Describe("VimDelete", func() {
	var (
		stub *stubRO
		wf   *workflows.Workflows
		d    *db.MemoryDb
		ctx  context.Context
	)

	BeforeEach(func() {
		stub = newStubRO()
		d = db.NewMemoryDb()
		ctx = context.Background()

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:  d,
			Fs:  fs.NewMemoryFs(),
			RO:  roClient,
			VCA: vca.NewMockClient(),
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("removes the local record once RO confirms the datacenter detach and vim delete", func() {
		Expect(d.Replace(ctx, "vim_accounts", "vim-1", map[string]interface{}{
			"_id":    "vim-1",
			"_admin": map[string]interface{}{"deployed": map[string]interface{}{"RO": map[string]interface{}{"id": "vim-99"}}},
		})).To(Succeed())
		stub.items("vim")["vim-99"] = map[string]interface{}{"uuid": "vim-99"}

		wf.VimDelete(ctx, "vim-1", 1)

		_, err := d.GetOne(ctx, "vim_accounts", map[string]interface{}{"_id": "vim-1"})
		Expect(db.IsNotFound(err)).To(BeTrue())
	})

	It("keeps the local record for retry when RO delete fails for a reason other than not-found", func() {
		Expect(d.Replace(ctx, "vim_accounts", "vim-2", map[string]interface{}{
			"_id":    "vim-2",
			"_admin": map[string]interface{}{"deployed": map[string]interface{}{"RO": map[string]interface{}{"id": "does-not-exist-at-ro"}}},
		})).To(Succeed())
		// no matching item registered in stub.items("vim"), so Delete returns 404 via DetachDatacenter succeeding (no-op) then Delete 404 -> treated as success by workflow (NotFound branch), so force a genuine failure instead:
		stub.forceDeleteError = true

		wf.VimDelete(ctx, "vim-2", 1)

		doc, err := d.GetOne(ctx, "vim_accounts", map[string]interface{}{"_id": "vim-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(doc["operationalState"]).To(Equal("ERROR"))
	})
})
