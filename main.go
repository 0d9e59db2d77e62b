package main

import (
	"fmt"
	"log"
	"os"

	_ "chatplan/docs"
	"chatplan/internal/auth"
	"chatplan/internal/handlers"
	"chatplan/internal/models"
	"chatplan/internal/storage"
	"chatplan/internal/tasks"
	"chatplan/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Расписания событий для каналов чата
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(&models.Schedule{}); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	tasks.InitScheduler()

	go ws.HubInstance.Run()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api", auth.Middleware())
	{
		api.POST("/schedules", handlers.CreateScheduleHandler)
		api.GET("/schedules", handlers.ListSchedulesHandler)
		api.GET("/schedules/:id", handlers.GetScheduleHandler)
		api.DELETE("/schedules/:id", handlers.DeleteScheduleHandler)
		api.GET("/channels/:channelId/schedules/ws", ws.ScheduleWebSocketHandler)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
