package dedup

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ProcessedMail is a handled mail id persisted for dedup across restarts
type ProcessedMail struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	MessageID   string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	ProcessedAt time.Time `gorm:""`
}

// TableName specifies the table name for ProcessedMail
func (ProcessedMail) TableName() string {
	return "processed_mail"
}

// GormStore backs the dedup set with a database so that a restart does not
// reprocess mail handled by an earlier run. Ids marked this run are also
// counted in memory for the shutdown summary.
type GormStore struct {
	db  *gorm.DB
	run *MemoryStore
}

// NewGormStore connects to the database, migrates the processed_mail table
// and returns a durable store.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ProcessedMail{}); err != nil {
		return nil, fmt.Errorf("failed to migrate processed_mail: %w", err)
	}

	return &GormStore{db: db, run: NewMemoryStore()}, nil
}

func (s *GormStore) Seen(id string) bool {
	var processed ProcessedMail
	result := s.db.Where("message_id = ?", id).First(&processed)
	if result.Error == nil {
		return true
	}
	if result.Error != gorm.ErrRecordNotFound {
		logrus.Errorf("Dedup lookup failed for %s: %v", id, result.Error)
	}
	return false
}

func (s *GormStore) Mark(id string) {
	s.run.Mark(id)
	record := ProcessedMail{MessageID: id, ProcessedAt: time.Now()}
	if err := s.db.Create(&record).Error; err != nil {
		logrus.Errorf("Failed to persist processed id %s: %v", id, err)
	}
}

func (s *GormStore) MarkIfUnseen(id string) bool {
	if s.Seen(id) {
		return false
	}
	s.Mark(id)
	return true
}

func (s *GormStore) Count() int {
	return s.run.Count()
}
