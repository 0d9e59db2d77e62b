package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"chatplan/internal/models"

	"gorm.io/datatypes"
)

// Формат времени HH:MM, 24 часа, минутная точность.
var timePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// CreateInput — тело запроса на создание события.
type CreateInput struct {
	Title        string               `json:"title"`
	Date         string               `json:"date"`
	StartTime    string               `json:"startTime"`
	EndTime      string               `json:"endTime"`
	Participants []models.Participant `json:"participants"`
	Details      string               `json:"details"`
	Recurrence   string               `json:"recurrence"`
	ChannelID    string               `json:"channelId"`
}

// ValidationError — ошибка валидации полей события. Message уходит
// клиенту как есть.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// MinutesOfDay переводит строку HH:MM в минуты с начала суток.
// Второе значение false, если строка не соответствует формату.
func MinutesOfDay(value string) (int, bool) {
	if !timePattern.MatchString(value) {
		return 0, false
	}
	parts := strings.SplitN(value, ":", 2)
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	return hours*60 + minutes, true
}

// ValidateCreate проверяет поля запроса до какого-либо обращения к БД и
// собирает готовую к сохранению запись. CreatedBy заполняет вызывающий.
func ValidateCreate(in CreateInput) (models.Schedule, *ValidationError) {
	if in.Title == "" || in.Date == "" || in.StartTime == "" || in.EndTime == "" || in.ChannelID == "" {
		return models.Schedule{}, invalid("Missing required fields")
	}

	// Лимит считается в символах, не в байтах.
	if utf8.RuneCountInString(in.Title) > 255 {
		return models.Schedule{}, invalid("Title must be 1-255 characters")
	}

	date, err := models.ParseDateOnly(in.Date)
	if err != nil {
		return models.Schedule{}, invalid("Invalid date format")
	}

	startMinutes, ok := MinutesOfDay(in.StartTime)
	if !ok {
		return models.Schedule{}, invalid("Start and end time must be in HH:MM format")
	}
	endMinutes, ok := MinutesOfDay(in.EndTime)
	if !ok {
		return models.Schedule{}, invalid("Start and end time must be in HH:MM format")
	}

	// События через полночь не поддерживаются: конец строго позже начала
	// в пределах одних суток.
	if endMinutes <= startMinutes {
		return models.Schedule{}, invalid("End time must be after start time")
	}

	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = models.RecurrenceNone
	}
	switch recurrence {
	case models.RecurrenceNone, models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMonthly:
	default:
		return models.Schedule{}, invalid("Invalid recurrence value")
	}

	participants := in.Participants
	if participants == nil {
		participants = []models.Participant{}
	}

	return models.Schedule{
		Title:        in.Title,
		Date:         date,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Participants: datatypes.NewJSONType(participants),
		Details:      in.Details,
		ChannelID:    in.ChannelID,
		Recurrence:   recurrence,
	}, nil
}
