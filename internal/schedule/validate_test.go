package schedule

import (
	"strings"
	"testing"

	"chatplan/internal/models"

	"github.com/stretchr/testify/assert"
)

func validInput() CreateInput {
	return CreateInput{
		Title:     "Планёрка",
		Date:      "2024-01-03",
		StartTime: "10:00",
		EndTime:   "11:00",
		Participants: []models.Participant{
			{ExternalUserID: "user-2", DisplayName: "Пётр"},
		},
		Details:    "Еженедельная встреча",
		Recurrence: models.RecurrenceWeekly,
		ChannelID:  "channel-1",
	}
}

func TestValidateCreateOk(t *testing.T) {
	sched, verr := ValidateCreate(validInput())
	assert.Nil(t, verr, "Корректный запрос не должен давать ошибку валидации")
	assert.Equal(t, "Планёрка", sched.Title)
	assert.Equal(t, "2024-01-03", sched.Date.Format("2006-01-02"))
	assert.Equal(t, "10:00", sched.StartTime)
	assert.Equal(t, "11:00", sched.EndTime)
	assert.Equal(t, models.RecurrenceWeekly, sched.Recurrence)
	assert.Equal(t, "channel-1", sched.ChannelID)
	assert.Len(t, sched.ParticipantList(), 1)

	// Инвариант: конец строго позже начала.
	start, _ := MinutesOfDay(sched.StartTime)
	end, _ := MinutesOfDay(sched.EndTime)
	assert.Greater(t, end, start, "Для созданного события конец должен быть позже начала")
}

func TestValidateCreateDefaults(t *testing.T) {
	in := validInput()
	in.Participants = nil
	in.Details = ""
	in.Recurrence = ""

	sched, verr := ValidateCreate(in)
	assert.Nil(t, verr)
	assert.Equal(t, models.RecurrenceNone, sched.Recurrence, "Пустое повторение должно превращаться в none")
	assert.NotNil(t, sched.ParticipantList(), "Список участников по умолчанию пустой, а не nil")
	assert.Len(t, sched.ParticipantList(), 0)
	assert.Equal(t, "", sched.Details)
}

func TestValidateCreateDuplicateParticipantsKept(t *testing.T) {
	in := validInput()
	in.Participants = []models.Participant{
		{ExternalUserID: "user-2", DisplayName: "Пётр"},
		{ExternalUserID: "user-2", DisplayName: "Пётр"},
	}

	sched, verr := ValidateCreate(in)
	assert.Nil(t, verr)
	assert.Len(t, sched.ParticipantList(), 2, "Дубликаты участников не удаляются")
}

func TestValidateCreateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*CreateInput)
		message string
	}{
		{"пустой title", func(in *CreateInput) { in.Title = "" }, "Missing required fields"},
		{"нет даты", func(in *CreateInput) { in.Date = "" }, "Missing required fields"},
		{"нет времени начала", func(in *CreateInput) { in.StartTime = "" }, "Missing required fields"},
		{"нет времени конца", func(in *CreateInput) { in.EndTime = "" }, "Missing required fields"},
		{"нет канала", func(in *CreateInput) { in.ChannelID = "" }, "Missing required fields"},
		{"title 256 символов", func(in *CreateInput) { in.Title = strings.Repeat("a", 256) }, "Title must be 1-255 characters"},
		{"title 256 кириллических символов", func(in *CreateInput) { in.Title = strings.Repeat("я", 256) }, "Title must be 1-255 characters"},
		{"кривая дата", func(in *CreateInput) { in.Date = "03.01.2024" }, "Invalid date format"},
		{"кривое время начала", func(in *CreateInput) { in.StartTime = "25:00" }, "Start and end time must be in HH:MM format"},
		{"кривое время конца", func(in *CreateInput) { in.EndTime = "10:5" }, "Start and end time must be in HH:MM format"},
		{"конец раньше начала", func(in *CreateInput) { in.StartTime = "10:00"; in.EndTime = "09:00" }, "End time must be after start time"},
		{"конец равен началу", func(in *CreateInput) { in.StartTime = "10:00"; in.EndTime = "10:00" }, "End time must be after start time"},
		{"неизвестное повторение", func(in *CreateInput) { in.Recurrence = "yearly" }, "Invalid recurrence value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, verr := ValidateCreate(in)
			assert.NotNil(t, verr, "Ожидалась ошибка валидации")
			assert.Equal(t, tc.message, verr.Message)
		})
	}
}

func TestValidateCreateTitleBoundary(t *testing.T) {
	in := validInput()
	in.Title = strings.Repeat("a", 255)
	_, verr := ValidateCreate(in)
	assert.Nil(t, verr, "255 символов ещё допустимы")

	// Лимит в символах: кириллица занимает два байта на символ.
	in.Title = strings.Repeat("я", 255)
	_, verr = ValidateCreate(in)
	assert.Nil(t, verr, "255 кириллических символов ещё допустимы")
}

func TestMinutesOfDay(t *testing.T) {
	minutes, ok := MinutesOfDay("09:30")
	assert.True(t, ok)
	assert.Equal(t, 570, minutes)

	minutes, ok = MinutesOfDay("9:05")
	assert.True(t, ok, "Часы без ведущего нуля допустимы")
	assert.Equal(t, 545, minutes)

	minutes, ok = MinutesOfDay("00:00")
	assert.True(t, ok)
	assert.Equal(t, 0, minutes)

	minutes, ok = MinutesOfDay("23:59")
	assert.True(t, ok)
	assert.Equal(t, 23*60+59, minutes)

	for _, bad := range []string{"24:00", "10:60", "1000", "10-00", "", "aa:bb"} {
		_, ok := MinutesOfDay(bad)
		assert.False(t, ok, "Строка %q не должна проходить формат HH:MM", bad)
	}
}

func TestParseDateOnlyAcceptsISO(t *testing.T) {
	date, err := models.ParseDateOnly("2024-01-03T15:04:05Z")
	assert.NoError(t, err, "ISO-строка с временем должна приниматься")
	assert.Equal(t, "2024-01-03", date.Format("2006-01-02"))
}
