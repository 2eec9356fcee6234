package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(rps float64, burst int) *gin.Engine {
	r := gin.New()
	r.Use(NewRateLimiter(rps, burst).Middleware())
	r.POST("/submit", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doPost(router *gin.Engine, ip string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/submit", nil)
	req.RemoteAddr = ip + ":50000"
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_WithinBudget(t *testing.T) {
	router := limitedRouter(10, 5)

	for i := 0; i < 5; i++ {
		if code := doPost(router, "203.0.113.7"); code != http.StatusOK {
			t.Fatalf("request %d: got %d, expected %d", i+1, code, http.StatusOK)
		}
	}
}

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	router := limitedRouter(1, 2)

	doPost(router, "203.0.113.8")
	doPost(router, "203.0.113.8")
	if code := doPost(router, "203.0.113.8"); code != http.StatusTooManyRequests {
		t.Errorf("third rapid request: got %d, expected %d", code, http.StatusTooManyRequests)
	}
}

func TestRateLimiter_BudgetsAreSeparatePerIP(t *testing.T) {
	router := limitedRouter(1, 1)

	if code := doPost(router, "203.0.113.9"); code != http.StatusOK {
		t.Fatalf("first IP: got %d, expected %d", code, http.StatusOK)
	}
	if code := doPost(router, "203.0.113.9"); code != http.StatusTooManyRequests {
		t.Errorf("first IP over budget: got %d, expected %d", code, http.StatusTooManyRequests)
	}
	if code := doPost(router, "198.51.100.4"); code != http.StatusOK {
		t.Errorf("second IP should have its own budget: got %d, expected %d", code, http.StatusOK)
	}
}
