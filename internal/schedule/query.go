package schedule

import (
	"encoding/json"

	"chatplan/internal/models"

	"gorm.io/gorm"
)

// Типизированные условия выборки. Собираются через db.Scopes(...) вместо
// конструирования сырых фильтров в обработчиках.

// InChannel ограничивает выборку одним каналом.
func InChannel(channelID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("channel_id = ?", channelID)
	}
}

// OwnedOrParticipant оставляет события, видимые пользователю: он либо
// создатель, либо указан среди участников.
func OwnedOrParticipant(externalUserID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		probe, _ := json.Marshal([]map[string]string{{"externalUserId": externalUserID}})
		return db.Where("created_by = ? OR participants @> ?::jsonb", externalUserID, string(probe))
	}
}

// DateBetween ограничивает выборку датами [from, to] включительно.
func DateBetween(from, to models.DateOnly) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("date BETWEEN ? AND ?", from, to)
	}
}

// OrderedByStart сортирует по (дата, время начала), при совпадении — в
// порядке создания.
func OrderedByStart() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("date ASC, start_time ASC, id ASC")
	}
}
