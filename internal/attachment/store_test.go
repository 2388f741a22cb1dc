package attachment_test

import (
	"context"
	"io"

	"github.com/frahmantamala/expense-reporting/internal/attachment"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStore", func() {
	It("never reuses a name for the same upload", func() {
		store := attachment.NewLocalStore(GinkgoT().TempDir())

		first, err := store.Save(context.Background(), 3, "scan.pdf", pdfContent)
		Expect(err).NotTo(HaveOccurred())
		second, err := store.Save(context.Background(), 3, "scan.pdf", pdfContent)
		Expect(err).NotTo(HaveOccurred())

		Expect(first).NotTo(Equal(second))
		rc, err := store.Open(context.Background(), second)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		body, _ := io.ReadAll(rc)
		Expect(body).To(Equal(pdfContent))
	})

	It("refuses urls outside the upload root", func() {
		store := attachment.NewLocalStore(GinkgoT().TempDir())

		_, err := store.Open(context.Background(), "/uploads/../../etc/passwd")
		Expect(err).To(HaveOccurred())

		_, err = store.Open(context.Background(), "/etc/passwd")
		Expect(err).To(HaveOccurred())
	})
})
