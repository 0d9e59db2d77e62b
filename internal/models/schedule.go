package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Возможные значения повторения события. Хранится только метка,
// разворачивание в конкретные повторы не выполняется.
const (
	RecurrenceNone    = "none"
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// Participant — участник события. Идентификатор выдаётся внешним
// провайдером идентификации и не проверяется этим сервисом.
type Participant struct {
	ExternalUserID string `json:"externalUserId"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
}

// Schedule — событие, привязанное к каналу чата.
type Schedule struct {
	ID           uint                              `gorm:"primarykey" json:"id"`
	Title        string                            `gorm:"size:255;not null" json:"title"`                  // Название события, 1-255 символов
	Date         DateOnly                          `gorm:"type:date;index;not null" json:"date"`            // Дата события (без времени)
	StartTime    string                            `gorm:"size:5;not null" json:"startTime"`                // Начало, HH:MM
	EndTime      string                            `gorm:"size:5;not null" json:"endTime"`                  // Окончание, HH:MM, строго позже начала
	Participants datatypes.JSONType[[]Participant] `gorm:"type:jsonb" json:"participants"`                  // Упорядоченный список участников, дубликаты не удаляются
	Details      string                            `gorm:"default:''" json:"details"`                       // Описание, опционально
	CreatedBy    string                            `gorm:"index;not null" json:"createdBy"`                 // Внешний ID создателя, не меняется
	ChannelID    string                            `gorm:"index;not null" json:"channelId"`                 // ID канала из внешнего мессенджера
	Recurrence   string                            `gorm:"size:16;default:'none'" json:"recurrence"`        // none | daily | weekly | monthly
	CreatedAt    time.Time                         `json:"createdAt"`
	UpdatedAt    time.Time                         `json:"updatedAt"`
}

// ParticipantList возвращает участников события.
func (s *Schedule) ParticipantList() []Participant {
	return s.Participants.Data()
}

// HasParticipant проверяет, указан ли пользователь среди участников.
func (s *Schedule) HasParticipant(externalUserID string) bool {
	for _, p := range s.Participants.Data() {
		if p.ExternalUserID == externalUserID {
			return true
		}
	}
	return false
}

const dateOnlyLayout = "2006-01-02"

// DateOnly — календарная дата с точностью до дня. В JSON сериализуется
// как "2006-01-02", в БД хранится в колонке типа date.
type DateOnly struct {
	time.Time
}

// NewDateOnly отбрасывает время суток у переданного момента.
func NewDateOnly(t time.Time) DateOnly {
	return DateOnly{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDateOnly принимает "2006-01-02" либо полный RFC3339 (клиенты
// нередко присылают ISO-строку с временем).
func ParseDateOnly(value string) (DateOnly, error) {
	if t, err := time.Parse(dateOnlyLayout, value); err == nil {
		return NewDateOnly(t), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return DateOnly{}, fmt.Errorf("incorrect date value %q", value)
	}
	return NewDateOnly(t), nil
}

func (d DateOnly) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateOnlyLayout) + `"`), nil
}

func (d *DateOnly) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDateOnly(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DateOnly) Value() (driver.Value, error) {
	return d.Format(dateOnlyLayout), nil
}

func (d *DateOnly) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		*d = NewDateOnly(v)
		return nil
	case []byte:
		parsed, err := ParseDateOnly(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDateOnly(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("unsupported date column value %T", value)
	}
}

// GormDataType задаёт тип колонки для миграции.
func (DateOnly) GormDataType() string {
	return "date"
}
