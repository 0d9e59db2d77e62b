package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"chatplan/internal/auth"
	"chatplan/internal/models"
	"chatplan/internal/response"
	"chatplan/internal/schedule"
	"chatplan/internal/storage"
	"chatplan/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var scheduleCtx = context.Background()

const (
	scheduleCacheTTL = time.Hour
	listCacheTTL     = 5 * time.Minute
)

// Версия канала растёт при каждом создании/удалении события, ключи
// кэша списков включают её, поэтому устаревшие окна отмирают сами.
func channelVersion(channelID string) int64 {
	version, err := storage.RedisClient.Get(scheduleCtx, "schedule_ver_"+channelID).Int64()
	if err != nil {
		return 0
	}
	return version
}

func bumpChannelVersion(channelID string) {
	storage.RedisClient.Incr(scheduleCtx, "schedule_ver_"+channelID)
}

// CreateScheduleHandler создаёт событие в канале
// @Summary		Создание события
// @Description	Проверяет поля события и сохраняет его; создателем становится авторизованный пользователь
// @Tags			schedules
// @Accept			json
// @Produce		json
// @Param			schedule	body		schedule.CreateInput	true	"Данные события"
// @Security		BearerAuth
// @Success		201	{object}	models.Schedule			"Созданное событие"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		401	{object}	response.ErrorResponse	"Нет авторизации (UNAUTHENTICATED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules [post]
func CreateScheduleHandler(c *gin.Context) {
	actor := c.GetString(auth.ContextUserKey)

	var input schedule.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	sched, verr := schedule.ValidateCreate(input)
	if verr != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: verr.Message,
		})
		return
	}
	sched.CreatedBy = actor

	if err := storage.DB.Create(&sched).Error; err != nil {
		log.Println("Ошибка при создании события:", err)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Failed to create schedule",
		})
		return
	}

	bumpChannelVersion(sched.ChannelID)
	ws.HubInstance.BroadcastScheduleEvent(ws.ScheduleEvent{
		EventType: "schedule_created",
		ChannelID: sched.ChannelID,
		Data:      sched,
	})

	c.JSON(http.StatusCreated, sched)
}

// ListSchedulesHandler возвращает события канала, видимые пользователю
// @Summary		Список событий канала
// @Description	События, где пользователь создатель или участник, с опциональным окном дат; сортировка по (дате, времени начала)
// @Tags			schedules
// @Accept			json
// @Produce		json
// @Param			channelId	query		string	true	"ID канала"
// @Param			startDate	query		string	false	"Начало окна (2006-01-02)"
// @Param			endDate		query		string	false	"Конец окна (2006-01-02), включительно"
// @Security		BearerAuth
// @Success		200	{array}		models.Schedule			"События канала"
// @Failure		400	{object}	response.ErrorResponse	"Не указан channelId (VALIDATION_ERROR)"
// @Failure		401	{object}	response.ErrorResponse	"Нет авторизации (UNAUTHENTICATED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules [get]
func ListSchedulesHandler(c *gin.Context) {
	actor := c.GetString(auth.ContextUserKey)

	channelID := c.Query("channelId")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "channelId is required",
		})
		return
	}

	scopes := []func(*gorm.DB) *gorm.DB{
		schedule.InChannel(channelID),
		schedule.OwnedOrParticipant(actor),
	}

	// Окно дат применяется только когда заданы обе границы.
	startStr := c.Query("startDate")
	endStr := c.Query("endDate")
	if startStr != "" && endStr != "" {
		startDate, err := models.ParseDateOnly(startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid date format",
			})
			return
		}
		endDate, err := models.ParseDateOnly(endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid date format",
			})
			return
		}
		scopes = append(scopes, schedule.DateBetween(startDate, endDate))
	}
	scopes = append(scopes, schedule.OrderedByStart())

	listKey := fmt.Sprintf("schedules_%s_%s_%d_%s_%s", channelID, actor, channelVersion(channelID), startStr, endStr)

	// Проверка кэша
	cached, err := storage.RedisClient.Get(scheduleCtx, listKey).Result()
	if err == nil && cached != "" {
		var schedules []models.Schedule
		if err := json.Unmarshal([]byte(cached), &schedules); err == nil {
			c.JSON(http.StatusOK, schedules)
			return
		}
	}

	schedules := make([]models.Schedule, 0)
	if err := storage.DB.Scopes(scopes...).Find(&schedules).Error; err != nil {
		log.Println("Ошибка при выборке событий:", err)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Failed to get schedules",
		})
		return
	}

	if payload, err := json.Marshal(schedules); err == nil {
		storage.RedisClient.Set(scheduleCtx, listKey, string(payload), listCacheTTL)
	}

	c.JSON(http.StatusOK, schedules)
}

// GetScheduleHandler возвращает событие по ID
// @Summary		Событие по ID
// @Description	Доступно создателю и участникам; остальным возвращается 403
// @Tags			schedules
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID события"
// @Security		BearerAuth
// @Success		200	{object}	models.Schedule			"Событие"
// @Failure		401	{object}	response.ErrorResponse	"Нет авторизации (UNAUTHENTICATED)"
// @Failure		403	{object}	response.ErrorResponse	"Нет доступа (ACCESS_DENIED)"
// @Failure		404	{object}	response.ErrorResponse	"Событие не найдено (NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules/{id} [get]
func GetScheduleHandler(c *gin.Context) {
	actor := c.GetString(auth.ContextUserKey)

	idStr := c.Param("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "Schedule not found",
		})
		return
	}

	var sched models.Schedule

	// Проверка кэша
	cached, cacheErr := storage.RedisClient.Get(scheduleCtx, cacheKey(idStr)).Result()
	if cacheErr == nil && cached != "" && json.Unmarshal([]byte(cached), &sched) == nil {
		respondSchedule(c, sched, actor)
		return
	}

	if err := storage.DB.First(&sched, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "Schedule not found",
			})
			return
		}
		log.Println("Ошибка при загрузке события:", err)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Failed to get schedule",
		})
		return
	}

	if payload, err := json.Marshal(sched); err == nil {
		storage.RedisClient.Set(scheduleCtx, cacheKey(idStr), string(payload), scheduleCacheTTL)
	}

	respondSchedule(c, sched, actor)
}

// respondSchedule отдаёт событие после проверки прав на чтение.
func respondSchedule(c *gin.Context, sched models.Schedule, actor string) {
	if sched.CreatedBy != actor && !sched.HasParticipant(actor) {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "ACCESS_DENIED",
			Message: "Access denied",
		})
		return
	}
	c.JSON(http.StatusOK, sched)
}

// DeleteScheduleHandler удаляет событие
// @Summary		Удаление события
// @Description	Удалять событие может только его создатель; участникам возвращается 403
// @Tags			schedules
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID события"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Событие удалено"
// @Failure		401	{object}	response.ErrorResponse		"Нет авторизации (UNAUTHENTICATED)"
// @Failure		403	{object}	response.ErrorResponse		"Удаляет не создатель (ACCESS_DENIED)"
// @Failure		404	{object}	response.ErrorResponse		"Событие не найдено (NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse		"Ошибка сервера (DB_ERROR)"
// @Router			/api/schedules/{id} [delete]
func DeleteScheduleHandler(c *gin.Context) {
	actor := c.GetString(auth.ContextUserKey)

	idStr := c.Param("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "Schedule not found",
		})
		return
	}

	var sched models.Schedule
	if err := storage.DB.First(&sched, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "Schedule not found",
			})
			return
		}
		log.Println("Ошибка при загрузке события:", err)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Failed to delete schedule",
		})
		return
	}

	if sched.CreatedBy != actor {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "ACCESS_DENIED",
			Message: "Only the creator can delete this schedule",
		})
		return
	}

	if err := storage.DB.Delete(&models.Schedule{}, id).Error; err != nil {
		log.Println("Ошибка при удалении события:", err)
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Failed to delete schedule",
		})
		return
	}

	storage.RedisClient.Del(scheduleCtx, cacheKey(idStr))
	bumpChannelVersion(sched.ChannelID)
	ws.HubInstance.BroadcastScheduleEvent(ws.ScheduleEvent{
		EventType: "schedule_deleted",
		ChannelID: sched.ChannelID,
		Data:      map[string]interface{}{"id": sched.ID},
	})

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Schedule deleted successfully",
	})
}

func cacheKey(idStr string) string {
	return "schedule_" + idStr
}
