package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie = "rpmt_flash"
	secureKey   = "secure_cookies"
)

// Flash ist eine einmalige Meldung für die nächste Seite.
type Flash struct {
	Category string `json:"c"` // success, danger, info
	Message  string `json:"m"`
}

// addFlash hängt eine Meldung an. Sie wird beim nächsten Rendern angezeigt.
func addFlash(c *gin.Context, category, message string) {
	flashes := pendingFlashes(c)
	flashes = append(flashes, Flash{Category: category, Message: message})
	c.Set(flashCookie, flashes)

	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	setFlashCookie(c, base64.RawURLEncoding.EncodeToString(raw), 300)
}

// popFlashes liefert alle ausstehenden Meldungen und löscht das Cookie.
func popFlashes(c *gin.Context) []Flash {
	flashes := pendingFlashes(c)
	if len(flashes) > 0 {
		setFlashCookie(c, "", -1)
		c.Set(flashCookie, []Flash(nil))
	}
	return flashes
}

func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashCookie); ok {
		return v.([]Flash)
	}
	var flashes []Flash
	if raw, err := c.Cookie(flashCookie); err == nil && raw != "" {
		if data, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
			_ = json.Unmarshal(data, &flashes)
		}
	}
	c.Set(flashCookie, flashes)
	return flashes
}

// setFlashCookie übernimmt das Secure-Flag, das secureCookies für die Anfrage gesetzt hat.
func setFlashCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, value, maxAge, "/", "", c.GetBool(secureKey), true)
}

// secureCookies merkt sich, ob Cookies nur über HTTPS gesendet werden.
func secureCookies(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(secureKey, secure)
		c.Next()
	}
}
