package database

import (
	"time"

	"github.com/openvbs/arena/internal/database/models"
	"gorm.io/gorm"
)

// User CRUD
func CreateUser(db *gorm.DB, user *models.User) error {
	return db.Create(user).Error
}

func GetUserByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByOIDCSubject(db *gorm.DB, subject string) (*models.User, error) {
	var user models.User
	if err := db.Where("oidc_subject = ?", subject).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetAllUsers(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func UpdateUser(db *gorm.DB, user *models.User) error {
	return db.Save(user).Error
}

func DeleteUser(db *gorm.DB, userID string) error {
	return db.Delete(&models.User{}, "id = ?", userID).Error
}

// Run CRUD
func CreateRun(db *gorm.DB, run *models.Run) error {
	return db.Create(run).Error
}

func GetRun(db *gorm.DB, id string) (*models.Run, error) {
	var run models.Run
	if err := db.Preload("Tasks").Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func GetAllRuns(db *gorm.DB) ([]models.Run, error) {
	var runs []models.Run
	if err := db.Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func UpdateRun(db *gorm.DB, run *models.Run) error {
	return db.Save(run).Error
}

// Task CRUD
func CreateTask(db *gorm.DB, task *models.Task) error {
	return db.Create(task).Error
}

func UpdateTask(db *gorm.DB, task *models.Task) error {
	return db.Save(task).Error
}

func GetTasksByRunID(db *gorm.DB, runID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Where("run_id = ?", runID).Order("created_at asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Submission CRUD
func CreateSubmission(db *gorm.DB, sub *models.Submission) error {
	return db.Create(sub).Error
}

func GetSubmission(db *gorm.DB, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Preload("AnswerSets").Preload("AnswerSets.Answers").
		Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmissionsByTaskID returns the authoritative submission history of one
// task, oldest first. Replaying this history through a scorer must reproduce
// the live scores.
func GetSubmissionsByTaskID(db *gorm.DB, taskID string) ([]models.Submission, error) {
	var subs []models.Submission
	if err := db.Preload("AnswerSets").Preload("AnswerSets.Answers").
		Where("task_id = ?", taskID).Order("posted_at asc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func UpdateAnswerSetStatus(db *gorm.DB, id string, status models.VerdictStatus, judgedBy string) error {
	return db.Model(&models.AnswerSet{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "judged_by": judgedBy}).Error
}

// Score time series
func AppendScoreTicks(db *gorm.DB, ticks []models.ScoreTick) error {
	if len(ticks) == 0 {
		return nil
	}
	return db.Create(&ticks).Error
}

// GetScoreSeries returns the appended score history of one board of a run,
// oldest first.
func GetScoreSeries(db *gorm.DB, runID, boardName string) ([]models.ScoreTick, error) {
	var ticks []models.ScoreTick
	if err := db.Where("run_id = ? AND board_name = ?", runID, boardName).
		Order("created_at asc").Find(&ticks).Error; err != nil {
		return nil, err
	}
	return ticks, nil
}

// Audit log (append only, never queried by the engine)
func AppendAuditRecord(db *gorm.DB, rec *models.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return db.Create(rec).Error
}

func GetAuditRecords(db *gorm.DB, runID string, limit int) ([]models.AuditRecord, error) {
	var recs []models.AuditRecord
	q := db.Where("run_id = ?", runID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
