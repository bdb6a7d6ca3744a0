package store_test

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

const (
	insertJobStm = "INSERT INTO jobs (id, session_id, kind, status) VALUES ('%s', '%s', '%s', '%s');"
)

var _ = Describe("job store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM jobs;")
	})

	Context("create", func() {
		It("successfully creates a pending job", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				ID:        uuid.New(),
				SessionID: "session-1",
				Kind:      model.JobKindReportGeneration,
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
		})
	})

	Context("get", func() {
		It("successfully reads the job for its own session", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			job, err := s.Job().Get(context.TODO(), jobID, "session-1")
			Expect(err).To(BeNil())
			Expect(job.ID).To(Equal(jobID))
		})

		It("reports a foreign session's job as not found", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			_, err := s.Job().Get(context.TODO(), jobID, "session-2")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("transition to processing", func() {
		It("claims a pending job exactly once", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			claimed, err := s.Job().TransitionToProcessing(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeTrue())

			claimed, err = s.Job().TransitionToProcessing(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeFalse())
		})

		It("fails when the job does not exist", func() {
			_, err := s.Job().TransitionToProcessing(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("does not claim a terminal job", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusCompleted))
			Expect(tx.Error).To(BeNil())

			claimed, err := s.Job().TransitionToProcessing(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(claimed).To(BeFalse())
		})
	})

	Context("complete", func() {
		It("records the result and leaves error empty", func() {
			jobID := uuid.New()
			reportID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusProcessing))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Complete(context.TODO(), jobID, model.JobResult{ReportID: &reportID, FileURL: "http://example.com/r", Iterations: 1})
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), jobID, "session-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
			Expect(job.Error).To(BeEmpty())
			Expect(job.Result).NotTo(BeNil())
			Expect(*job.Result.Data.ReportID).To(Equal(reportID))
			Expect(job.CompletedAt).NotTo(BeNil())
		})

		It("rejects completion of a pending job", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Complete(context.TODO(), jobID, model.JobResult{})
			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})

		It("rejects completion of an already failed job", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusFailed))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Complete(context.TODO(), jobID, model.JobResult{})
			Expect(err).To(MatchError(store.ErrInvalidTransition))
		})
	})

	Context("fail", func() {
		It("records the error and leaves the result empty", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusProcessing))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Fail(context.TODO(), jobID, "generation blew up")
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), jobID, "session-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).To(Equal("generation blew up"))
			Expect(job.Result).To(BeNil())
		})

		It("rejects failing a pending job", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Fail(context.TODO(), jobID, "too early")
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			job, err := s.Job().Get(context.TODO(), jobID, "session-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
		})

		It("never mutates a completed job", func() {
			jobID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, jobID, "session-1", model.JobKindReportGeneration, model.JobStatusCompleted))
			Expect(tx.Error).To(BeNil())

			err := s.Job().Fail(context.TODO(), jobID, "too late")
			Expect(err).To(MatchError(store.ErrInvalidTransition))

			job, err := s.Job().Get(context.TODO(), jobID, "session-1")
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
		})
	})

	Context("list", func() {
		It("lists only the session's jobs", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "session-1", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "session-1", model.JobKindReportEvaluation, model.JobStatusCompleted))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertJobStm, uuid.New(), "session-2", model.JobKindReportGeneration, model.JobStatusPending))
			Expect(tx.Error).To(BeNil())

			jobList, err := s.Job().List(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(jobList).To(HaveLen(2))
		})
	})
})
