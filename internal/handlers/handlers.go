package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/id-verify/internal/auth"
	"github.com/example/id-verify/internal/imagecheck"
	"github.com/example/id-verify/internal/usecase"
	"github.com/example/id-verify/internal/verify"
)

// MaxUploadSize bounds one multipart submission: two photos plus form
// overhead.
const MaxUploadSize = 2*imagecheck.MaxImageBytes + 1<<20

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.VerificationUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authorized := router.Group("/", authMiddleware)

	authorized.POST("/verification", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		idPhoto, ok := readUpload(c, "id_photo")
		if !ok {
			return
		}
		selfie, ok := readUpload(c, "selfie")
		if !ok {
			return
		}

		result, err := uc.Submit(c.Request.Context(), userID, idPhoto, selfie, c.PostForm("documents"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed, try again later"})
			return
		}

		if result.Blocked {
			c.JSON(http.StatusConflict, gin.H{
				"code":        "submission_blocked",
				"title":       "Submission not allowed",
				"description": "You already have an active verification request, or a recent rejection is still in its cooldown period.",
			})
			return
		}

		if !result.Verdict.Valid {
			c.JSON(statusForCode(result.Verdict.Code), gin.H{
				"code":        result.Verdict.Code,
				"title":       result.Verdict.Title,
				"description": result.Verdict.Description,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": result.RequestID,
			"status":     "pending",
		})
	})

	authorized.GET("/verification/:id", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		record, err := uc.Status(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":   record.RequestID,
			"status":       record.Status,
			"code":         record.Code,
			"detail":       record.Detail,
			"submitted_at": record.SubmittedAt,
		})
	})

	authorized.POST("/verification/:id/review", func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		var body struct {
			Approve bool   `json:"approve"`
			Notes   string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid review payload"})
			return
		}

		if err := uc.Review(c.Request.Context(), userID, c.Param("id"), body.Approve, body.Notes); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "review could not be recorded"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
	})

	authorized.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics unavailable"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// readUpload pulls one photo out of the multipart form. Size and declared
// type come from the part, never from the filename.
func readUpload(c *gin.Context, field string) (verify.File, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return verify.File{}, false
	}

	if fileHeader.Size > imagecheck.MaxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":  verify.CodeFileTooLarge,
			"error": field + " exceeds the size limit",
		})
		return verify.File{}, false
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open " + field})
		return verify.File{}, false
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + field})
		return verify.File{}, false
	}

	return verify.File{
		Content:  content,
		MIMEType: partContentType(fileHeader),
		Size:     fileHeader.Size,
	}, true
}

func partContentType(fileHeader *multipart.FileHeader) string {
	return fileHeader.Header.Get("Content-Type")
}

func statusForCode(code verify.Code) int {
	switch code {
	case verify.CodeInvalidFileType:
		return http.StatusUnsupportedMediaType
	case verify.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case verify.CodeVerificationError:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
