package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

var _ = Describe("session store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := store.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db

		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM sessions;")
	})

	Context("touch", func() {
		It("creates the session on first sight", func() {
			session, err := s.Session().Touch(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(session.ID).To(Equal("session-1"))

			session, err = s.Session().Get(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(session.LastSeenAt).NotTo(BeZero())
		})

		It("bumps last_seen_at on repeat visits", func() {
			first, err := s.Session().Touch(context.TODO(), "session-1")
			Expect(err).To(BeNil())

			_, err = s.Session().Touch(context.TODO(), "session-1")
			Expect(err).To(BeNil())

			session, err := s.Session().Get(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(session.CreatedAt.UnixMicro()).To(Equal(first.CreatedAt.UnixMicro()))
			Expect(session.LastSeenAt.UnixMicro()).To(BeNumerically(">=", first.LastSeenAt.UnixMicro()))
		})
	})

	Context("update", func() {
		It("persists workflow state on the session", func() {
			_, err := s.Session().Touch(context.TODO(), "session-1")
			Expect(err).To(BeNil())

			session, err := s.Session().Get(context.TODO(), "session-1")
			Expect(err).To(BeNil())

			session.Snapshot = model.MakeJSONField([]map[string]any{{"id": "proj-1"}})
			session.Mapping = model.MakeJSONField(map[string]any{"title": "name"})
			session.LongTextStrategy = "ellipsis"
			session.CurrentStep = model.SessionStepGenerating
			_, err = s.Session().Update(context.TODO(), session)
			Expect(err).To(BeNil())

			stored, err := s.Session().Get(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(stored.Snapshot.Data).To(HaveLen(1))
			Expect(stored.LongTextStrategy).To(Equal("ellipsis"))
			Expect(stored.CurrentStep).To(Equal(model.SessionStepGenerating))
		})
	})

	Context("get", func() {
		It("fails when the session does not exist", func() {
			_, err := s.Session().Get(context.TODO(), "nope")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
