// Package layout раскладывает уже загруженный список событий по сетке
// недельного календаря. Пакет чистый: не ходит ни в БД, ни в сеть, и
// безопасен для вызова на каждую перерисовку.
package layout

import (
	"fmt"

	"chatplan/internal/models"
	"chatplan/internal/schedule"
)

// Отображаемое окно времени: почасовые строки с 09:00 по 18:00.
// Константа отображения, от данных не зависит.
const (
	SlotStartHour = 9
	SlotCount     = 10
)

// Config — единицы измерения сетки.
type Config struct {
	PxPerHour        float64 // высота одного часа
	SlotStartMinutes float64 // начало окна в минутах от полуночи
}

// DefaultConfig — 60px на час, окно с 09:00.
func DefaultConfig() Config {
	return Config{PxPerHour: 60, SlotStartMinutes: SlotStartHour * 60}
}

// Block — положение блока события в колонке дня.
type Block struct {
	Top    float64
	Height float64
}

// BlockGeometry вычисляет положение блока по времени начала и конца.
// Начало раньше 09:00 прижимается к верху сетки, высота уменьшается на
// отрезанную часть. Минимальная высота 20px, чтобы короткое событие
// оставалось видимым. Снизу блок не обрезается: событие позже 18:00
// выйдет за сетку, обрезать или расширять окно решает отрисовка.
func (cfg Config) BlockGeometry(startTime, endTime string) (Block, error) {
	startMinutes, ok := schedule.MinutesOfDay(startTime)
	if !ok {
		return Block{}, fmt.Errorf("incorrect start time %q", startTime)
	}
	endMinutes, ok := schedule.MinutesOfDay(endTime)
	if !ok {
		return Block{}, fmt.Errorf("incorrect end time %q", endTime)
	}

	top := (float64(startMinutes) - cfg.SlotStartMinutes) / 60 * cfg.PxPerHour
	height := float64(endMinutes-startMinutes) / 60 * cfg.PxPerHour
	if top < 0 {
		height += top
		top = 0
	}
	if height < 20 {
		height = 20
	}
	return Block{Top: top, Height: height}, nil
}

// TimeSlots возвращает подписи строк сетки: "09:00" ... "18:00".
func TimeSlots() []string {
	slots := make([]string, 0, SlotCount)
	for i := 0; i < SlotCount; i++ {
		slots = append(slots, fmt.Sprintf("%02d:00", SlotStartHour+i))
	}
	return slots
}

// WeekStart возвращает понедельник недели, в которую попадает дата
// (для воскресенья — понедельник шестью днями раньше).
func WeekStart(ref models.DateOnly) models.DateOnly {
	weekday := int(ref.Weekday()) // воскресенье = 0
	offset := -(weekday - 1)
	if weekday == 0 {
		offset = -6
	}
	return models.NewDateOnly(ref.AddDate(0, 0, offset))
}

// WeekDays возвращает 7 дат недели, начиная с переданного понедельника.
func WeekDays(start models.DateOnly) [7]models.DateOnly {
	var days [7]models.DateOnly
	for i := range days {
		days[i] = models.NewDateOnly(start.AddDate(0, 0, i))
	}
	return days
}

// Navigate сдвигает опорную дату на weeks недель. Повторный запрос
// событий под новое окно остаётся за вызывающим.
func Navigate(ref models.DateOnly, weeks int) models.DateOnly {
	return models.NewDateOnly(ref.AddDate(0, 0, 7*weeks))
}

// SchedulesForDay отбирает события колонки дня: сравнивается только
// календарная дата, время суток на колонку не влияет.
func SchedulesForDay(schedules []models.Schedule, day models.DateOnly) []models.Schedule {
	result := make([]models.Schedule, 0)
	for _, s := range schedules {
		if s.Date.Year() == day.Year() && s.Date.YearDay() == day.YearDay() {
			result = append(result, s)
		}
	}
	return result
}
