package tasks

import (
	"log"
	"os"
	"strconv"
	"time"

	"chatplan/internal/models"
	"chatplan/internal/storage"

	"github.com/robfig/cron/v3"
)

const defaultRetentionDays = 90

// CleanOldSchedules удаляет события, дата которых старше окна хранения.
// Окно задаётся переменной SCHEDULE_RETENTION_DAYS, по умолчанию 90 дней.
func CleanOldSchedules() {
	retentionDays := defaultRetentionDays
	if raw := os.Getenv("SCHEDULE_RETENTION_DAYS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			retentionDays = parsed
		}
	}

	threshold := models.NewDateOnly(time.Now().AddDate(0, 0, -retentionDays))
	if err := storage.DB.Where("date < ?", threshold).Delete(&models.Schedule{}).Error; err != nil {
		log.Println("Ошибка при удалении устаревших событий:", err)
	} else {
		log.Println("Устаревшие события успешно удалены.")
	}
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Очистка устаревших событий каждый день в 03:00.
	_, err := c.AddFunc("0 0 3 * * *", CleanOldSchedules)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи CleanOldSchedules:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
