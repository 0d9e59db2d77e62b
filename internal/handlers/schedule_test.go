package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"chatplan/internal/auth"
	"chatplan/internal/models"
	"chatplan/internal/response"
	"chatplan/internal/schedule"
	"chatplan/internal/storage"
	"chatplan/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

// AuthMiddlewareTest подставляет внешний ID пользователя из заголовка
// X-Test-UserID вместо проверки настоящего токена.
func AuthMiddlewareTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Request.Header.Get("X-Test-UserID")
		if userID == "" {
			userID = "user-creator"
		}
		c.Set(auth.ContextUserKey, userID)
		c.Next()
	}
}

func setupTestServer(t *testing.T) *httptest.Server {
	if os.Getenv("TEST_DB_HOST") == "" {
		godotenv.Load("../../.env")
	}
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST не задан, пропускаем интеграционный тест")
	}

	storage.ConnectTestingDatabase()
	storage.DB.Exec("TRUNCATE TABLE schedules RESTART IDENTITY CASCADE;")

	if err := storage.DB.AutoMigrate(&models.Schedule{}); err != nil {
		t.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()
	storage.RedisClient.FlushDB(context.Background())

	go ws.HubInstance.Run()

	gin.SetMode(gin.TestMode)
	r := gin.Default()

	api := r.Group("/api", AuthMiddlewareTest())
	{
		api.POST("/schedules", CreateScheduleHandler)
		api.GET("/schedules", ListSchedulesHandler)
		api.GET("/schedules/:id", GetScheduleHandler)
		api.DELETE("/schedules/:id", DeleteScheduleHandler)
		api.GET("/channels/:channelId/schedules/ws", ws.ScheduleWebSocketHandler)
	}

	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url, userID string, body interface{}) (*http.Response, []byte) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		assert.NoError(t, err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-UserID", userID)

	res, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(res.Body)
	assert.NoError(t, err)
	return res, buf.Bytes()
}

func TestScheduleFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	// Уникальный канал на запуск, чтобы не пересекаться с прошлыми данными.
	channelID := fmt.Sprintf("channel-%d", time.Now().UnixNano())
	creator := "user-creator"
	participant := "user-participant"
	outsider := "user-outsider"

	// Подписываемся на WS-события канала до создания событий.
	wsURL := "ws" + ts.URL[4:] + "/api/channels/" + channelID + "/schedules/ws"
	dialer := websocket.Dialer{}
	wsHeaders := http.Header{}
	wsHeaders.Set("X-Test-UserID", participant)
	wsConn, _, err := dialer.Dial(wsURL, wsHeaders)
	assert.NoError(t, err, "Ошибка подключения к WS")
	defer wsConn.Close()
	// Даем хабу зарегистрировать подписчика до первой записи.
	time.Sleep(100 * time.Millisecond)

	// 1. Создание события с участником.
	input := schedule.CreateInput{
		Title:     "Планёрка",
		Date:      "2024-01-03",
		StartTime: "10:00",
		EndTime:   "11:00",
		Participants: []models.Participant{
			{ExternalUserID: participant, DisplayName: "Пётр", AvatarURL: "https://example.com/p.png"},
		},
		Details:    "Еженедельная встреча",
		Recurrence: models.RecurrenceWeekly,
		ChannelID:  channelID,
	}
	res, body := doJSON(t, http.MethodPost, ts.URL+"/api/schedules", creator, input)
	assert.Equal(t, http.StatusCreated, res.StatusCode, "Создание события должно вернуть 201")

	var created models.Schedule
	assert.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, creator, created.CreatedBy, "Создателем становится авторизованный пользователь")

	// WS-событие о создании.
	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, wsMessage, err := wsConn.ReadMessage()
	assert.NoError(t, err, "Ошибка чтения WS сообщения")
	var wsEvent ws.ScheduleEvent
	assert.NoError(t, json.Unmarshal(wsMessage, &wsEvent))
	assert.Equal(t, "schedule_created", wsEvent.EventType)
	assert.Equal(t, channelID, wsEvent.ChannelID)

	// 2. Второе событие раньше по дате, для проверки сортировки.
	early := input
	early.Title = "Ранний созвон"
	early.Date = "2024-01-01"
	early.StartTime = "09:00"
	early.EndTime = "09:30"
	early.Participants = nil
	res, body = doJSON(t, http.MethodPost, ts.URL+"/api/schedules", creator, early)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	var earlyCreated models.Schedule
	assert.NoError(t, json.Unmarshal(body, &earlyCreated))

	// 3. Ошибки валидации.
	bad := input
	bad.Title = ""
	res, body = doJSON(t, http.MethodPost, ts.URL+"/api/schedules", creator, bad)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var errRes response.ErrorResponse
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "Missing required fields", errRes.Message)

	bad = input
	bad.StartTime = "10:00"
	bad.EndTime = "09:00"
	res, body = doJSON(t, http.MethodPost, ts.URL+"/api/schedules", creator, bad)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "End time must be after start time", errRes.Message)

	// 4. Список без channelId отклоняется до запроса к БД.
	res, body = doJSON(t, http.MethodGet, ts.URL+"/api/schedules", creator, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "channelId is required", errRes.Message)

	// 5. Список создателя за окно недели: оба события, по возрастанию даты.
	listURL := ts.URL + "/api/schedules?channelId=" + channelID + "&startDate=2024-01-01&endDate=2024-01-07"
	res, body = doJSON(t, http.MethodGet, listURL, creator, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var listed []models.Schedule
	assert.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 2)
	assert.Equal(t, earlyCreated.ID, listed[0].ID, "Сортировка по (дате, времени начала)")
	assert.Equal(t, created.ID, listed[1].ID)

	// Окно, не накрывающее события, даёт пустой список.
	emptyURL := ts.URL + "/api/schedules?channelId=" + channelID + "&startDate=2024-02-01&endDate=2024-02-07"
	res, body = doJSON(t, http.MethodGet, emptyURL, creator, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 0)

	// 6. Участник видит только событие, где он указан.
	res, body = doJSON(t, http.MethodGet, ts.URL+"/api/schedules?channelId="+channelID, participant, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// 7. Чтение по ID: раунд-трип и права доступа.
	getURL := ts.URL + "/api/schedules/" + strconv.Itoa(int(created.ID))
	res, body = doJSON(t, http.MethodGet, getURL, creator, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var fetched models.Schedule
	assert.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, input.Title, fetched.Title)
	assert.Equal(t, input.Date, fetched.Date.Format("2006-01-02"))
	assert.Equal(t, input.StartTime, fetched.StartTime)
	assert.Equal(t, input.EndTime, fetched.EndTime)
	assert.Equal(t, input.Details, fetched.Details)
	assert.Equal(t, input.Recurrence, fetched.Recurrence)
	assert.Equal(t, input.ChannelID, fetched.ChannelID)
	assert.Equal(t, input.Participants, fetched.ParticipantList())

	res, _ = doJSON(t, http.MethodGet, getURL, participant, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode, "Участник имеет право на чтение")

	res, body = doJSON(t, http.MethodGet, getURL, outsider, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "Access denied", errRes.Message)

	res, body = doJSON(t, http.MethodGet, ts.URL+"/api/schedules/999999", creator, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "Schedule not found", errRes.Message)

	// 8. Удалять может только создатель.
	deleteURL := ts.URL + "/api/schedules/" + strconv.Itoa(int(created.ID))
	res, body = doJSON(t, http.MethodDelete, deleteURL, participant, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "Only the creator can delete this schedule", errRes.Message)

	res, body = doJSON(t, http.MethodDelete, deleteURL, creator, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var okRes response.SuccessResponse
	assert.NoError(t, json.Unmarshal(body, &okRes))
	assert.Equal(t, "Schedule deleted successfully", okRes.Message)

	// WS-событие об удалении (после события о втором создании).
	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, wsMessage, err = wsConn.ReadMessage()
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(wsMessage, &wsEvent))
	assert.Equal(t, "schedule_created", wsEvent.EventType, "Сначала приходит событие о втором создании")

	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, wsMessage, err = wsConn.ReadMessage()
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(wsMessage, &wsEvent))
	assert.Equal(t, "schedule_deleted", wsEvent.EventType)

	// 9. Повторное удаление того же ID — NotFound.
	res, body = doJSON(t, http.MethodDelete, deleteURL, creator, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &errRes))
	assert.Equal(t, "Schedule not found", errRes.Message)

	// 10. Удалённое событие пропадает из списка.
	res, body = doJSON(t, http.MethodGet, ts.URL+"/api/schedules?channelId="+channelID, creator, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 1)
	assert.Equal(t, earlyCreated.ID, listed[0].ID)
}
