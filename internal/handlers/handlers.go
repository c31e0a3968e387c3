package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Faissen/signatures-recognition/internal/auth"
	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/signature"
	"github.com/Faissen/signatures-recognition/internal/usecase"
)

// MaxUploadSize bounds an uploaded signature image.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for form boundaries and text fields.
const multipartOverhead = 1 << 20

// LowQualityMessage is returned when a signature carries too little ink.
const LowQualityMessage = "Signature quality too low."

var allowedContentTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
}

var (
	errUploadTooLarge  = errors.New("image exceeds upload limit")
	errUnsupportedType = errors.New("only PNG and JPEG images are supported")
	errMissingImage    = errors.New("image file is required")
	errTooManyPixels   = errors.New("image dimensions exceed the pixel limit")
)

// Service is the identification flow behind the HTTP API.
type Service interface {
	Identify(ctx context.Context, userID string, imageBytes []byte) (*usecase.IdentificationResult, error)
	Enroll(ctx context.Context, req usecase.EnrollRequest) (*usecase.EnrollmentResult, error)
	GetResult(ctx context.Context, userID, requestID string) (*usecase.IdentificationResult, error)
	GetDuplicateReport(ctx context.Context, userID, requestID string) (*usecase.DuplicateReport, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	secured := router.Group("/", authMiddleware)
	secured.POST("/identify", identifyHandler(svc))
	secured.POST("/enroll", auth.RequireScope(auth.ScopeEnroll), enrollHandler(svc))
	secured.GET("/result/:id", resultHandler(svc))
	secured.GET("/result/:id/duplicates", duplicatesHandler(svc))
	secured.GET("/metrics/summary", metricsHandler(svc))
}

func identifyHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		data, _, ok := readUpload(c)
		if !ok {
			return
		}

		result, err := svc.Identify(c.Request.Context(), userID, data)
		if err != nil {
			if errors.Is(err, signature.ErrLowQuality) {
				body := gin.H{"status": "error", "message": LowQualityMessage}
				if result != nil {
					body["request_id"] = result.RequestID
				}
				c.JSON(http.StatusUnprocessableEntity, body)
				return
			}
			if errors.Is(err, imageprocessor.ErrTooManyPixels) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooManyPixels.Error()})
				return
			}
			if errors.Is(err, signature.ErrImageDecode) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to decode image"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		body := gin.H{
			"request_id":   result.RequestID,
			"status":       result.Status,
			"top_matches":  result.TopMatches,
			"accepted":     result.Accepted,
			"threshold":    result.Threshold,
			"cursive":      result.Cursive,
			"gallery_size": result.GallerySize,
		}
		if result.Text != "" {
			body["text"] = result.Text
		}
		if debug, _ := strconv.ParseBool(c.Query("debug")); debug {
			body["all"] = result.All
		}
		c.JSON(http.StatusOK, body)
	}
}

func enrollHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, filename, ok := readUpload(c)
		if !ok {
			return
		}

		res, err := svc.Enroll(c.Request.Context(), usecase.EnrollRequest{
			Name:      c.PostForm("name"),
			ImagePath: filename,
			Image:     data,
		})
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, res)
		case errors.Is(err, usecase.ErrInvalidName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		case errors.Is(err, usecase.ErrAlreadyEnrolled):
			c.JSON(http.StatusConflict, gin.H{"error": "signature already enrolled"})
		case errors.Is(err, signature.ErrLowQuality):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "error", "message": LowQualityMessage})
		case errors.Is(err, imageprocessor.ErrTooManyPixels):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooManyPixels.Error()})
		case errors.Is(err, signature.ErrImageDecode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to decode image"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

func resultHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		result, err := svc.GetResult(c.Request.Context(), userID, requestID)
		if err != nil {
			if errors.Is(err, usecase.ErrResultNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func duplicatesHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		report, err := svc.GetDuplicateReport(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			if errors.Is(err, usecase.ErrResultNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func metricsHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// readUpload reads the "image" form file. On failure it writes the error
// response and returns false.
func readUpload(c *gin.Context) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errUploadTooLarge.Error()})
			return nil, "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingImage.Error()})
		return nil, "", false
	}
	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errUploadTooLarge.Error()})
		return nil, "", false
	}

	data, err := readFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return nil, "", false
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": errUnsupportedType.Error()})
		return nil, "", false
	}
	return data, file.Filename, true
}

func readFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
