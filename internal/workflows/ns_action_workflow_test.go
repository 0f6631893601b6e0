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

var _ = Describe("NsAction", func() {
	var (
		stub    *stubRO
		mockVCA *vca.MockClient
		wf      *workflows.Workflows
		d       *db.MemoryDb
		ctx     context.Context
	)

	BeforeEach(func() {
		stub = newStubRO()
		mockVCA = vca.NewMockClient()
		d = db.NewMemoryDb()
		ctx = context.Background()

		roClient := ro.NewClient(stub.URL(), 0, ro.WithTenant("tenant-1"))
		wf = workflows.New(workflows.Collaborators{
			Db:  d,
			Fs:  fs.NewMemoryFs(),
			RO:  roClient,
			VCA: mockVCA,
		})

		_ = d.Replace(ctx, "nsrs", "nsr-1", map[string]interface{}{
			"_id": "nsr-1",
			"_admin": map[string]interface{}{
				"deployed": map[string]interface{}{
					"VCA": map[string]interface{}{
						"1": map[string]interface{}{
							"model": "default", "application": "ns-one-1-vnfd-a",
							"operational-status": "active",
						},
					},
				},
			},
		})
	})

	AfterEach(func() {
		stub.Close()
	})

	It("runs the primitive and marks the operation completed", func() {
		_ = d.Replace(ctx, "nslcmops", "op-action-1", map[string]interface{}{
			"_id": "op-action-1",
			"operationParams": map[string]interface{}{
				"member_vnf_index": "1", "primitive": "start", "primitive_params": map[string]interface{}{},
			},
		})

		wf.NsAction(ctx, "nsr-1", "op-action-1")

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-action-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("COMPLETED"))
		Expect(op["detailed-status"]).To(Equal("Done"))
	})

	It("fails when the target charm is not deployed", func() {
		_ = d.Replace(ctx, "nslcmops", "op-action-2", map[string]interface{}{
			"_id": "op-action-2",
			"operationParams": map[string]interface{}{
				"member_vnf_index": "2", "primitive": "start",
			},
		})

		wf.NsAction(ctx, "nsr-1", "op-action-2")

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-action-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("FAILED"))
		Expect(op["detailed-status"]).To(ContainSubstring("not deployed"))
	})

	It("fails when the primitive execution errors", func() {
		mockVCA.ExecuteErr = context.DeadlineExceeded

		_ = d.Replace(ctx, "nslcmops", "op-action-3", map[string]interface{}{
			"_id": "op-action-3",
			"operationParams": map[string]interface{}{
				"member_vnf_index": "1", "primitive": "start",
			},
		})

		wf.NsAction(ctx, "nsr-1", "op-action-3")

		op, err := d.GetOne(ctx, "nslcmops", map[string]interface{}{"_id": "op-action-3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(op["operationState"]).To(Equal("FAILED"))
	})
})
