package workflows_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/fs"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/ro"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/vca"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/workflows"
)

// seedOneVnfNs populates a single-VNF NS (no vnf-configuration/
// vdu-configuration charms, so the instantiate path completes without
// any asynchronous charm fan-out) across nsds/vnfds/nsrs/nslcmops/vnfrs.
func seedOneVnfNs(ctx context.Context, d *db.MemoryDb) {
	_ = d.Replace(ctx, "vnfds", "vnfd-a", map[string]interface{}{
		"id":  "vnfd-a",
		"vdu": []interface{}{map[string]interface{}{"id": "vdu1"}},
	})
	_ = d.Replace(ctx, "nsds", "nsd-a", map[string]interface{}{
		"id": "nsd-a",
		"constituent-vnfd": []interface{}{
			map[string]interface{}{"member-vnf-index": "1", "vnfd-id-ref": "vnfd-a"},
		},
	})
	_ = d.Replace(ctx, "nsrs", "nsr-1", map[string]interface{}{
		"_id":    "nsr-1",
		"name":   "ns-one",
		"nsd-id": "nsd-a",
	})
	_ = d.Replace(ctx, "nslcmops", "op-1", map[string]interface{}{
		"_id":             "op-1",
		"operationParams": map[string]interface{}{},
	})
	_ = d.Replace(ctx, "vnfrs", "vnfr-1", map[string]interface{}{
		"_id":                  "vnfr-1",
		"nsr-id-ref":           "nsr-1",
		"member-vnf-index-ref": "1",
		"vdur":                 []interface{}{map[string]interface{}{"vdu-id-ref": "vdu1"}},
	})
}

var _ = Describe("NsInstantiate", func() {
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
		seedOneVnfNs(ctx, d)

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:       d,
			Fs:       fs.NewMemoryFs(),
			RO:       roClient,
			VCA:      vca.NewMockClient(),
			Registry: registry.New(),
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("registers the vnfd/nsd/ns at RO and marks the operation completed", func() {
		wf.NsInstantiate(ctx, "nsr-1", "op-1", 1)

		nsr, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsr["operational-status"]).To(Equal("running"))
		Expect(nsr["config-status"]).To(Equal("configured"))

		admin := nsr["_admin"].(map[string]interface{})
		deployed := admin["deployed"].(map[string]interface{})
		roBag := deployed["RO"].(map[string]interface{})
		Expect(roBag["nsr_status"]).To(Equal(ro.NsStatusActive))
		Expect(roBag["nsr_id"]).To(HavePrefix("ns-"))
		Expect(roBag["nsd_id"]).To(HavePrefix("nsd-"))

		vnfdIDMap := roBag["vnfd_id"].(map[string]interface{})
		Expect(vnfdIDMap["vnfd-a"]).To(HavePrefix("vnfd-"))

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("COMPLETED"))
	})

	It("marks the nsr and nslcmop failed when RO reports the scenario went into ERROR", func() {
		stub.nextNsStatus = "ERROR"

		wf.NsInstantiate(ctx, "nsr-1", "op-1", 1)

		nsr, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsr["operational-status"]).To(Equal("failed"))

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("FAILED"))
	})

	It("does not write a non-ERROR status when the context is already cancelled", func() {
		cancelledCtx, cancel := context.WithCancel(context.Background())
		cancel()

		wf.NsInstantiate(cancelledCtx, "nsr-1", "op-1", 1)

		nsr, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsr["operational-status"]).To(Equal("init"))
		Expect(nsr["detailed-status"]).To(Equal("creating"))
	})
})

// seedTwoVnfNsOneCharmed populates a two-VNF NS where member-vnf-index
// "1" carries a vnf-configuration/juju charm and "2" does not, matching
// a charm fan-out of exactly one DeployCharm call.
func seedTwoVnfNsOneCharmed(ctx context.Context, d *db.MemoryDb) {
	_ = d.Replace(ctx, "vnfds", "vnfd-a", map[string]interface{}{
		"id":  "vnfd-a",
		"vdu": []interface{}{map[string]interface{}{"id": "vdu1"}},
		"vnf-configuration": map[string]interface{}{
			"juju": map[string]interface{}{"charm": "simple-charm"},
		},
	})
	_ = d.Replace(ctx, "vnfds", "vnfd-b", map[string]interface{}{
		"id":  "vnfd-b",
		"vdu": []interface{}{map[string]interface{}{"id": "vdu2"}},
	})
	_ = d.Replace(ctx, "nsds", "nsd-ab", map[string]interface{}{
		"id": "nsd-ab",
		"constituent-vnfd": []interface{}{
			map[string]interface{}{"member-vnf-index": "1", "vnfd-id-ref": "vnfd-a"},
			map[string]interface{}{"member-vnf-index": "2", "vnfd-id-ref": "vnfd-b"},
		},
	})
	_ = d.Replace(ctx, "nsrs", "nsr-2", map[string]interface{}{
		"_id":    "nsr-2",
		"name":   "ns-two",
		"nsd-id": "nsd-ab",
	})
	_ = d.Replace(ctx, "nslcmops", "op-2", map[string]interface{}{
		"_id":             "op-2",
		"operationParams": map[string]interface{}{},
	})
	_ = d.Replace(ctx, "vnfrs", "vnfr-2a", map[string]interface{}{
		"_id":                  "vnfr-2a",
		"nsr-id-ref":           "nsr-2",
		"member-vnf-index-ref": "1",
		"vdur":                 []interface{}{map[string]interface{}{"vdu-id-ref": "vdu1"}},
	})
	_ = d.Replace(ctx, "vnfrs", "vnfr-2b", map[string]interface{}{
		"_id":                  "vnfr-2b",
		"nsr-id-ref":           "nsr-2",
		"member-vnf-index-ref": "2",
		"vdur":                 []interface{}{map[string]interface{}{"vdu-id-ref": "vdu2"}},
	})
}

var _ = Describe("NsInstantiate charm fan-out", func() {
	var (
		stub    *stubRO
		mockVCA *vca.MockClient
		reg     *registry.Registry
		wf      *workflows.Workflows
		d       *db.MemoryDb
		ctx     context.Context
	)

	BeforeEach(func() {
		stub = newStubRO()
		d = db.NewMemoryDb()
		ctx = context.Background()
		seedTwoVnfNsOneCharmed(ctx, d)

		mockVCA = vca.NewMockClient()
		reg = registry.New()

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:       d,
			Fs:       fs.NewMemoryFs(),
			RO:       roClient,
			VCA:      mockVCA,
			Registry: reg,
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("registers one create_charm task for the charmed VNF and leaves the other VCA slot absent", func() {
		block := make(chan struct{})
		mockVCA.DeployBlock = block
		defer close(block)

		wf.NsInstantiate(ctx, "nsr-2", "op-2", 1)

		Eventually(func() []string {
			return reg.Snapshot("ns", "nsr-2")[1]
		}).Should(ContainElement("create_charm:1"))

		nsr, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsr["config-status"]).To(Equal("configuring"))

		admin := nsr["_admin"].(map[string]interface{})
		deployed := admin["deployed"].(map[string]interface{})
		vcaBag := deployed["VCA"].(map[string]interface{})
		Expect(vcaBag["1"]).NotTo(BeNil())
		Expect(vcaBag["2"]).To(BeNil())

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["detailed-status"]).To(Equal("configuring: init: 1"))
	})
})

var _ = Describe("NsTerminate", func() {
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
		seedOneVnfNs(ctx, d)

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:       d,
			Fs:       fs.NewMemoryFs(),
			RO:       roClient,
			VCA:      vca.NewMockClient(),
			Registry: registry.New(),
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("deletes ns/nsd/vnfd at RO and marks the nsr terminated", func() {
		wf.NsInstantiate(ctx, "nsr-1", "op-1", 1)

		_ = d.Replace(ctx, "nslcmops", "op-2", map[string]interface{}{
			"_id":             "op-2",
			"operationParams": map[string]interface{}{},
		})
		wf.NsTerminate(ctx, "nsr-1", "op-2")

		nsr, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsr["operational-status"]).To(Equal("terminated"))

		admin := nsr["_admin"].(map[string]interface{})
		Expect(admin["nsState"]).To(Equal("NOT_INSTANTIATED"))

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("COMPLETED"))
	})

	It("hard-deletes the nsr/nslcmops/vnfrs when autoremove is requested", func() {
		wf.NsInstantiate(ctx, "nsr-1", "op-1", 1)

		_ = d.Replace(ctx, "nslcmops", "op-2", map[string]interface{}{
			"_id":             "op-2",
			"nsInstanceId":    "nsr-1",
			"operationParams": map[string]interface{}{"autoremove": true},
		})
		wf.NsTerminate(ctx, "nsr-1", "op-2")

		_, err := d.GetOne(ctx, "nsrs", map[string]interface{}{"_id": "nsr-1"})
		Expect(db.IsNotFound(err)).To(BeTrue())

		// the final nslcmop status write happens before the hard-delete
		// sweep, per the redesigned autoremove ordering.
		_, err = d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-2"})
		Expect(db.IsNotFound(err)).To(BeTrue())

		_, err = d.GetOne(ctx, "vnfrs", map[string]interface{}{"_id": "vnfr-1"})
		Expect(db.IsNotFound(err)).To(BeTrue())
	})
})
