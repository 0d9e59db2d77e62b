// Package client — потребительский фасад API расписаний. Держит
// локальную копию загруженного окна событий и обновляет её
// оптимистично: append при создании, удаление по ID при удалении,
// полная замена при загрузке списка.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"chatplan/internal/models"
	"chatplan/internal/response"
	"chatplan/internal/schedule"
)

// TokenSource выдаёт bearer-токен для очередного запроса. Токены живут
// недолго, поэтому значение запрашивается на каждый вызов.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken оборачивает фиксированный токен.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// Client — клиент API расписаний одного канала.
type Client struct {
	baseURL   string
	channelID string
	token     TokenSource
	http      *http.Client

	mu        sync.Mutex
	schedules []models.Schedule
}

// New создает клиента для канала. baseURL без завершающего слэша,
// например "http://localhost:8080".
func New(baseURL, channelID string, token TokenSource) *Client {
	return &Client{
		baseURL:   baseURL,
		channelID: channelID,
		token:     token,
		http:      &http.Client{},
		schedules: make([]models.Schedule, 0),
	}
}

// Schedules возвращает копию загруженного окна событий.
func (c *Client) Schedules() []models.Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]models.Schedule, len(c.schedules))
	copy(snapshot, c.schedules)
	return snapshot
}

// List загружает события канала за окно дат (обе границы опциональны,
// применяются только вместе) и замещает локальную копию ответом сервера.
func (c *Client) List(ctx context.Context, startDate, endDate *models.DateOnly) ([]models.Schedule, error) {
	params := url.Values{}
	params.Set("channelId", c.channelID)
	if startDate != nil {
		params.Set("startDate", startDate.Format("2006-01-02"))
	}
	if endDate != nil {
		params.Set("endDate", endDate.Format("2006-01-02"))
	}

	var schedules []models.Schedule
	err := c.do(ctx, http.MethodGet, "/api/schedules?"+params.Encode(), nil, http.StatusOK, &schedules)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.schedules = schedules
	c.mu.Unlock()
	return schedules, nil
}

// Create создает событие и добавляет ответ сервера в конец локальной
// копии. Повторной загрузки списка и дедупликации нет: два быстрых
// вызова дадут два события.
func (c *Client) Create(ctx context.Context, input schedule.CreateInput) (models.Schedule, error) {
	input.ChannelID = c.channelID

	var created models.Schedule
	err := c.do(ctx, http.MethodPost, "/api/schedules", input, http.StatusCreated, &created)
	if err != nil {
		return models.Schedule{}, err
	}

	c.mu.Lock()
	c.schedules = append(c.schedules, created)
	c.mu.Unlock()
	return created, nil
}

// Get загружает одно событие. Локальная копия не трогается.
func (c *Client) Get(ctx context.Context, id uint) (models.Schedule, error) {
	var sched models.Schedule
	err := c.do(ctx, http.MethodGet, "/api/schedules/"+strconv.FormatUint(uint64(id), 10), nil, http.StatusOK, &sched)
	if err != nil {
		return models.Schedule{}, err
	}
	return sched, nil
}

// Delete удаляет событие и убирает его из локальной копии.
func (c *Client) Delete(ctx context.Context, id uint) error {
	err := c.do(ctx, http.MethodDelete, "/api/schedules/"+strconv.FormatUint(uint64(id), 10), nil, http.StatusOK, nil)
	if err != nil {
		return err
	}

	// Новый срез, а не сжатие на месте: срезы, отданные из List,
	// делят с кэшем массив и не должны меняться задним числом.
	c.mu.Lock()
	filtered := make([]models.Schedule, 0, len(c.schedules))
	for _, s := range c.schedules {
		if s.ID != id {
			filtered = append(filtered, s)
		}
	}
	c.schedules = filtered
	c.mu.Unlock()
	return nil
}

// do выполняет запрос и декодирует либо результат, либо сообщение об
// ошибке сервера. Сообщение возвращается вызывающему дословно, без
// автоматических повторов.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != wantStatus {
		var serverErr response.ErrorResponse
		if json.NewDecoder(res.Body).Decode(&serverErr) == nil && serverErr.Message != "" {
			return errors.New(serverErr.Message)
		}
		return fmt.Errorf("request failed with status %d", res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
