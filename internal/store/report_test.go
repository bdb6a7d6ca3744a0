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
	insertReportStm = "INSERT INTO reports (id, session_id, project_id, format, iteration) VALUES ('%s', '%s', '%s', '%s', %d);"
)

var _ = Describe("report store", Ordered, func() {
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
		gormdb.Exec("DELETE FROM reports;")
	})

	Context("create", func() {
		It("successfully creates a report", func() {
			report, err := s.Report().Create(context.TODO(), model.Report{
				ID:        uuid.New(),
				SessionID: "session-1",
				ProjectID: "proj-1",
				Format:    "html",
				ObjectKey: "reports/session-1/r.html",
				Iteration: 1,
			})
			Expect(err).To(BeNil())
			Expect(report.ID).NotTo(Equal(uuid.Nil))
		})
	})

	Context("get", func() {
		It("successfully reads the report for its own session", func() {
			reportID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertReportStm, reportID, "session-1", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())

			report, err := s.Report().Get(context.TODO(), reportID, "session-1")
			Expect(err).To(BeNil())
			Expect(report.ProjectID).To(Equal("proj-1"))
		})

		It("reports a foreign session's report as not found", func() {
			reportID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertReportStm, reportID, "session-1", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())

			_, err := s.Report().Get(context.TODO(), reportID, "session-2")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("list", func() {
		It("lists only the session's reports", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-1", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-1", "proj-2", "pptx", 1))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-2", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())

			reports, err := s.Report().List(context.TODO(), "session-1")
			Expect(err).To(BeNil())
			Expect(reports).To(HaveLen(2))
		})
	})

	Context("count by project", func() {
		It("counts only the session's reports for the project", func() {
			tx := gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-1", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-1", "proj-1", "html", 2))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-1", "proj-2", "html", 1))
			Expect(tx.Error).To(BeNil())
			tx = gormdb.Exec(fmt.Sprintf(insertReportStm, uuid.New(), "session-2", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())

			count, err := s.Report().CountByProject(context.TODO(), "session-1", "proj-1")
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(2)))
		})

		It("returns zero when the session has no reports", func() {
			count, err := s.Report().CountByProject(context.TODO(), "session-1", "proj-1")
			Expect(err).To(BeNil())
			Expect(count).To(BeZero())
		})
	})

	Context("update evaluation", func() {
		It("stores the verdict on the report", func() {
			reportID := uuid.New()
			tx := gormdb.Exec(fmt.Sprintf(insertReportStm, reportID, "session-1", "proj-1", "html", 1))
			Expect(tx.Error).To(BeNil())

			err := s.Report().UpdateEvaluation(context.TODO(), reportID, model.Evaluation{
				Score:          82,
				Issues:         []string{"missing milestone dates"},
				Recommendation: "pass",
			})
			Expect(err).To(BeNil())

			report, err := s.Report().Get(context.TODO(), reportID, "session-1")
			Expect(err).To(BeNil())
			Expect(report.Evaluation).NotTo(BeNil())
			Expect(report.Evaluation.Data.Score).To(Equal(82))
			Expect(report.Evaluation.Data.Recommendation).To(Equal("pass"))
		})

		It("fails when the report does not exist", func() {
			err := s.Report().UpdateEvaluation(context.TODO(), uuid.New(), model.Evaluation{Score: 50})
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})
