package model

import "time"

// TaskBackup is a point-in-time copy of a task row.
type TaskBackup struct {
	BackupID    uint `gorm:"primaryKey;autoIncrement"`
	TaskID      uint `gorm:"index"`
	Title       string
	Description string
	DueDate     string
	DueTime     string
	Recurrence  Recurrence
	Completed   bool
	BackupAt    time.Time `gorm:"index"`
}
