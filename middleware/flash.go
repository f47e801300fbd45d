package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "taller_flash"
	flashKey        = "flash"

	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

// SetFlash queues a message for the next request, usually after a redirect.
func SetFlash(c *gin.Context, level, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, level+"|"+message, 60, "/", "", false, true)
}

// Flashes moves a queued message from its cookie into the request context
// and clears the cookie.
func Flashes() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(flashCookieName)
		if err == nil && raw != "" {
			if f, ok := parseFlash(raw); ok {
				c.Set(flashKey, f)
			}
			c.SetCookie(flashCookieName, "", -1, "/", "", false, true)
		}
		c.Next()
	}
}

// GetFlash returns the message consumed by Flashes, or nil.
func GetFlash(c *gin.Context) *Flash {
	v, ok := c.Get(flashKey)
	if !ok {
		return nil
	}
	f, ok := v.(Flash)
	if !ok {
		return nil
	}
	return &f
}

func parseFlash(raw string) (Flash, bool) {
	level, message, found := strings.Cut(raw, "|")
	if !found || message == "" {
		return Flash{}, false
	}
	switch level {
	case FlashSuccess, FlashInfo, FlashWarning, FlashError:
	default:
		level = FlashInfo
	}
	return Flash{Level: level, Message: message}, true
}
