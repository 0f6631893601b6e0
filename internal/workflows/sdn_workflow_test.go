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

var _ = Describe("SdnCreate and SdnDelete", func() {
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

	It("registers the sdn controller at RO and marks it ENABLED", func() {
		Expect(d.Replace(ctx, "sdns", "sdn-1", map[string]interface{}{"_id": "sdn-1", "type": "onos"})).To(Succeed())

		wf.SdnCreate(ctx, map[string]interface{}{"_id": "sdn-1"}, 1)

		doc, err := d.GetOne(ctx, "sdns", map[string]interface{}{"_id": "sdn-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(doc["operationalState"]).To(Equal("ENABLED"))
	})

	It("deletes the local record once RO confirms the sdn is gone", func() {
		Expect(d.Replace(ctx, "sdns", "sdn-1", map[string]interface{}{
			"_id":    "sdn-1",
			"_admin": map[string]interface{}{"deployed": map[string]interface{}{"RO": map[string]interface{}{"id": "sdn-99"}}},
		})).To(Succeed())
		stub.items("sdn")["sdn-99"] = map[string]interface{}{"uuid": "sdn-99"}

		wf.SdnDelete(ctx, "sdn-1", 1)

		_, err := d.GetOne(ctx, "sdns", map[string]interface{}{"_id": "sdn-1"})
		Expect(db.IsNotFound(err)).To(BeTrue())
	})
})
