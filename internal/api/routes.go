package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/adapters/document"
	"github.com/satriahrh/papantulis/server/adapters/stt"
	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/repositories"
	"github.com/satriahrh/papantulis/server/internal/auth"
	"github.com/satriahrh/papantulis/server/internal/stream"
	"github.com/satriahrh/papantulis/server/internal/websocket"
	"github.com/satriahrh/papantulis/server/usecase"
)

const (
	maxAudioBytes = 25 << 20
	maxPDFBytes   = 20 << 20
	maxImageBytes = 10 << 20

	imageFieldPrefix = "image_file_"
)

// Services bundles everything the HTTP surface calls into
type Services struct {
	Generator *usecase.GeneratorService
	Prompts   *usecase.PromptService
	Boards    *usecase.BoardService
	Language  *usecase.LanguageSetting
	Search    repositories.ImageSearch
	Tokens    *auth.Issuer
	Hub       *websocket.Hub
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, services Services, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "papantulis-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Generator APIs
	v1.POST("/speech-to-prompt", func(c echo.Context) error {
		return speechToPrompt(c, services.Prompts, logger)
	})
	v1.GET("/reply", func(c echo.Context) error {
		return reply(c, services.Generator, logger)
	})
	v1.POST("/set-language", func(c echo.Context) error {
		return setLanguage(c, services.Language, logger)
	})
	v1.GET("/image-search", func(c echo.Context) error {
		return imageSearch(c, services.Search, logger)
	})

	// Board APIs
	v1.POST("/boards", func(c echo.Context) error {
		return createBoard(c, services.Boards, services.Tokens, logger)
	})
	v1.GET("/boards/:id", func(c echo.Context) error {
		return getBoard(c, services.Boards, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(services.Hub, services.Tokens, c, logger)
	})
}

func speechToPrompt(c echo.Context, prompts *usecase.PromptService, logger *zap.Logger) error {
	sessionID := c.FormValue("session_id")
	audioHeader, err := c.FormFile("audio_file")
	if sessionID == "" || err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Missing 'session_id' or 'audio_file' in form data.",
		})
	}

	audio, err := readUpload(audioHeader, maxAudioBytes)
	if err != nil {
		logger.Warn("Failed to read audio upload", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audio",
			Message: err.Error(),
		})
	}

	documentText := c.FormValue("document_text")
	if pdfHeader, err := c.FormFile("pdf_file"); err == nil {
		if text, err := readPDF(pdfHeader); err != nil {
			logger.Warn("Continuing without unreadable pdf", zap.String("filename", pdfHeader.Filename), zap.Error(err))
		} else {
			documentText = strings.TrimSpace(documentText + "\n" + text)
		}
	}

	images := readImages(c, logger)

	sampleRate, _ := strconv.Atoi(c.FormValue("sample_rate"))

	logger.Info("Received speech-to-prompt request", zap.String("sessionID", sessionID))

	result, err := prompts.SpeechToPrompt(c.Request().Context(), usecase.PromptRequest{
		SessionID:    sessionID,
		Audio:        audio,
		Encoding:     stt.EncodingFor(audioHeader.Header.Get("Content-Type"), audioHeader.Filename),
		SampleRate:   sampleRate,
		DocumentText: documentText,
		Images:       images,
	})
	if err != nil {
		logger.Error("Speech-to-prompt failed", zap.String("sessionID", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "speech_to_prompt_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

func readUpload(header *multipart.FileHeader, limit int64) ([]byte, error) {
	if header.Size > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", header.Filename, limit)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func readPDF(header *multipart.FileHeader) (string, error) {
	data, err := readUpload(header, maxPDFBytes)
	if err != nil {
		return "", err
	}
	return document.ExtractPDFText(data)
}

// readImages collects every image_file_* upload in field name order.
// Files that are not images or cannot be read are skipped.
func readImages(c echo.Context, logger *zap.Logger) []repositories.InlineImage {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if strings.HasPrefix(field, imageFieldPrefix) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	var images []repositories.InlineImage
	for _, field := range fields {
		for _, header := range form.File[field] {
			mediaType, ok := document.ImageMediaType(header.Header.Get(echo.HeaderContentType), header.Filename)
			if !ok {
				logger.Warn("Ignoring non image upload", zap.String("field", field), zap.String("filename", header.Filename))
				continue
			}
			data, err := readUpload(header, maxImageBytes)
			if err != nil {
				logger.Warn("Ignoring unreadable image", zap.String("field", field), zap.Error(err))
				continue
			}
			images = append(images, repositories.InlineImage{MIMEType: mediaType, Data: data})
		}
	}
	return images
}

func reply(c echo.Context, generator *usecase.GeneratorService, logger *zap.Logger) error {
	req := repositories.StreamRequest{
		RefinedPrompt:  c.QueryParam("refined_prompt"),
		SessionID:      c.QueryParam("session_id"),
		ContextSummary: c.QueryParam("context_summary"),
	}
	if err := usecase.ValidateStreamRequest(req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: err.Error(),
		})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	// Failures after the header went out are already delivered as error events
	if err := generator.Stream(c.Request().Context(), req, stream.NewSSEWriter(res)); err != nil {
		logger.Warn("Reply stream ended with error", zap.String("sessionID", req.SessionID), zap.Error(err))
	}
	return nil
}

func setLanguage(c echo.Context, language *usecase.LanguageSetting, logger *zap.Logger) error {
	var req SetLanguageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	lang, err := language.Set(req.Lang)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Missing 'lang' in request body.",
		})
	}

	logger.Info("Language set", zap.String("lang", lang))
	return c.JSON(http.StatusOK, SetLanguageResponse{Status: "ok", Lang: lang})
}

func imageSearch(c echo.Context, search repositories.ImageSearch, logger *zap.Logger) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Missing query parameter 'q'.",
		})
	}

	result, err := search.Search(c.Request().Context(), query)
	if err == nil {
		return c.JSON(http.StatusOK, result)
	}

	var netErr *domain.NetworkError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrNotConfigured):
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "not_configured", Message: err.Error()})
	case errors.As(err, &netErr) && netErr.StatusCode >= 400:
		logger.Error("Image search provider failed", zap.String("query", query), zap.Error(err))
		return c.JSON(netErr.StatusCode, ErrorResponse{
			Error:   "provider_error",
			Message: "Error from image search provider.",
		})
	default:
		logger.Error("Unexpected error during image search", zap.String("query", query), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred during image search.",
		})
	}
}

func createBoard(c echo.Context, boards *usecase.BoardService, tokens *auth.Issuer, logger *zap.Logger) error {
	b, err := boards.Create(c.Request().Context())
	if err != nil {
		logger.Error("Failed to create board", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create board",
		})
	}

	token, expiresAt, err := tokens.GenerateBoardToken(b.ID)
	if err != nil {
		logger.Error("Failed to generate board token", zap.String("boardID", b.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate board token",
		})
	}

	return c.JSON(http.StatusCreated, CreateBoardResponse{Board: b, Token: token, ExpiresAt: expiresAt})
}

func getBoard(c echo.Context, boards *usecase.BoardService, logger *zap.Logger) error {
	b, err := boards.Get(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Board not found"})
	case err != nil:
		logger.Error("Failed to load board", zap.String("boardID", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to load board"})
	}
	return c.JSON(http.StatusOK, b)
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
// Browsers cannot set headers on a WebSocket handshake, so the token may
// also come in the token query parameter.
func websocketWithAuth(hub *websocket.Hub, tokens *auth.Issuer, c echo.Context, logger *zap.Logger) error {
	token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if token == c.Request().Header.Get(echo.HeaderAuthorization) {
		token = ""
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleBoard {
		logger.Warn("WebSocket connection rejected: invalid role", zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only board tokens are allowed for WebSocket connections",
		})
	}

	if claims.BoardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Board ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated", zap.String("boardID", claims.BoardID))
	return websocket.HandleWebSocket(hub, c, claims.BoardID, logger)
}
