package auth

import (
	"time"

	"github.com/frahmantamala/expense-reporting/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JWTTokenGenerator", func() {
	var gen *JWTTokenGenerator

	BeforeEach(func() {
		gen = NewJWTTokenGenerator("test-session-secret-that-is-long-enough", time.Hour)
	})

	It("carries the full capability snapshot", func() {
		issued := time.Now().Add(-time.Minute).Truncate(time.Second)
		in := &Session{
			UserID: 7, Email: "a@example.com", Name: "A", RoleID: 3, RoleName: "Accountant",
			MustChangePassword: true, IssuedAt: issued,
			Capabilities: Capabilities{CanProcess: true},
		}

		token, expiresAt, err := gen.Generate(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(expiresAt).To(BeTemporally("==", issued.Add(time.Hour)))

		out, err := gen.Validate(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.UserID).To(Equal(int64(7)))
		Expect(out.RoleName).To(Equal("Accountant"))
		Expect(out.CanProcess).To(BeTrue())
		Expect(out.CanApprove).To(BeFalse())
		Expect(out.MustChangePassword).To(BeTrue())
		Expect(out.IssuedAt).To(BeTemporally("==", issued))
	})

	It("reports expiry separately from other failures", func() {
		token, _, err := gen.Generate(&Session{UserID: 1, IssuedAt: time.Now().Add(-2 * time.Hour)})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.Validate(token)
		Expect(err).To(MatchError(internal.ErrTokenExpired))
	})

	It("rejects tokens signed with another secret", func() {
		other := NewJWTTokenGenerator("another-secret-of-sufficient-length!!", time.Hour)
		token, _, err := other.Generate(&Session{UserID: 1})
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.Validate(token)
		Expect(err).To(MatchError(internal.ErrInvalidToken))
	})

	It("rejects garbage", func() {
		_, err := gen.Validate("not-a-jwt")
		Expect(err).To(MatchError(internal.ErrInvalidToken))
	})
})

var _ = Describe("Session staleness", func() {
	It("is stale once older than the max age", func() {
		now := time.Now()
		s := &Session{IssuedAt: now.Add(-6 * time.Minute)}
		Expect(s.Stale(5*time.Minute, now)).To(BeTrue())

		s.IssuedAt = now.Add(-time.Minute)
		Expect(s.Stale(5*time.Minute, now)).To(BeFalse())
	})
})
