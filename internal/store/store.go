package store

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Report() Report
	Session() Session
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db      *gorm.DB
	log     logrus.FieldLogger
	job     Job
	report  Report
	session Session
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:      db,
		log:     logrus.New(),
		job:     NewJobStore(db),
		report:  NewReportStore(db),
		session: NewSessionStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db, s.log)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Report() Report {
	return s.report
}

func (s *DataStore) Session() Session {
	return s.session
}

// InitialMigration creates the schema directly from the models. Production
// deployments run the SQL migrations instead; this path serves sqlite and the
// test suites.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Session{},
		&model.Job{},
		&model.Report{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
