package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	studentIDHeader  = "X-Student-ID"
	contextStudentID = "student_id"
)

// StudentIdentity resolves the calling student from the gateway-set
// identity header. The API gateway authenticates requests upstream;
// this service only needs the resolved id.
func StudentIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(studentIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Student not authenticated",
			})
			return
		}
		studentID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid student identity",
			})
			return
		}
		c.Set(contextStudentID, studentID)
		c.Next()
	}
}

// studentID returns the identity stored by StudentIdentity.
func studentID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(contextStudentID)
	studentID, _ := id.(uuid.UUID)
	return studentID
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles requests per client IP, with idle entries
// cleaned up by a background janitor. Close stops the janitor.
type IPRateLimiter struct {
	mu     sync.Mutex
	store  map[string]*visitor
	limit  int
	window time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter limits each client IP to maxRequests per window.
func NewIPRateLimiter(maxRequests int, window time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		store:  make(map[string]*visitor),
		limit:  maxRequests,
		window: window,
		done:   make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

func (rl *IPRateLimiter) janitor() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.store {
				if time.Since(v.lastSeen) > 3*rl.window {
					delete(rl.store, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.store[ip]
	if !exists {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit),
		}
		rl.store[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Middleware returns the gin handler enforcing the limit.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Message: "Too many requests",
			})
			return
		}
		c.Next()
	}
}

// Close stops the janitor. Safe to call more than once.
func (rl *IPRateLimiter) Close() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}
