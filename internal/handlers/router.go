package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/light-quiz/quiz-service/internal/services"
	"github.com/light-quiz/quiz-service/internal/utils"
)

type RouterConfig struct {
	RateLimit       int
	RateLimitWindow time.Duration
}

type HandlerManager struct {
	attemptHandler *AttemptHandler
	rateLimiter    *IPRateLimiter
}

func NewHandlerManager(
	attemptService services.AttemptService,
	validator *utils.Validator,
	logger utils.Logger,
	config RouterConfig,
) *HandlerManager {
	hm := &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, validator, logger),
	}
	if config.RateLimit > 0 {
		hm.rateLimiter = NewIPRateLimiter(config.RateLimit, config.RateLimitWindow)
	}
	return hm
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	if hm.rateLimiter != nil {
		v1.Use(hm.rateLimiter.Middleware())
	}
	v1.Use(StudentIdentity())
	{
		quizzes := v1.Group("/quizzes")
		{
			quizzes.GET("/:quiz_id", hm.attemptHandler.GetQuizMetadata)
			quizzes.POST("/:quiz_id/attempt", hm.attemptHandler.StartAttempt)
			quizzes.GET("/:quiz_id/progress", hm.attemptHandler.GetProgress)
			quizzes.GET("/:quiz_id/result", hm.attemptHandler.GetResult)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.POST("/progress", hm.attemptHandler.SaveProgress)
			attempts.POST("/submit", hm.attemptHandler.SubmitQuiz)
		}
	}
}

// Close releases router-owned resources, currently the rate limiter's
// janitor.
func (hm *HandlerManager) Close() {
	if hm.rateLimiter != nil {
		hm.rateLimiter.Close()
	}
}

// HealthCheck reports service liveness
// @Summary Health check
// @Description Returns service health status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "quiz-service",
	})
}
