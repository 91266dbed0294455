package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/einsatzpix/gallery-api/pkg/errors"
)

// Envelope is the wire contract shared by the upload endpoint and all error
// responses: {"success": true, "photo": ...} or {"success": false, "error": "..."}.
type Envelope struct {
	Success bool        `json:"success"`
	Photo   interface{} `json:"photo,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Photo sends a successful upload response carrying the accepted record.
func Photo(c *gin.Context, photo interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, Envelope{Success: true, Photo: photo})
}

// JSON sends an arbitrary payload without the envelope (listing endpoint).
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{Success: false, Error: appErr.Message})
}
