package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/service"
	"github.com/ytsprites/api/pkg/response"
)

type SpritesHandler struct {
	service   *service.SpriteService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewSpritesHandler(svc *service.SpriteService, v *validator.Validate, logger *zap.Logger) *SpritesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpritesHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Submit handles POST /api/sprites/submit
// @Summary      Submit video
// @Description  Upload a video and queue an asynchronous sprite sheet job
// @Tags         Sprites
// @Accept       multipart/form-data
// @Produce      json
// @Param        file     formData file   true  "Video file"
// @Param        videoId  formData string false "Client video ID"
// @Param        stepSec  formData number false "Seconds between frames"
// @Param        columns  formData int    false "Tiles per row"
// @Param        rows     formData int    false "Tiles per column"
// @Param        format   formData string false "jpg, jpeg or png"
// @Param        quality  formData int    false "JPEG quality 1-100"
// @Success      202 {object} model.SubmitResponse
// @Failure      400 {object} response.RejectedResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.RejectedResponse
// @Router       /api/sprites/submit [post]
func (h *SpritesHandler) Submit(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Rejected(c, fiber.StatusBadRequest, response.CodeValidationError, "Video file is required", 0, nil)
	}
	if fileHeader.Size == 0 {
		return response.Rejected(c, fiber.StatusBadRequest, response.CodeValidationError, "Video file is empty", 0, nil)
	}

	opts, details := parseOptions(c)
	if details != nil {
		return response.Rejected(c, fiber.StatusBadRequest, response.CodeValidationError, "Invalid options", 0, details)
	}

	req := model.SubmitRequest{
		VideoID: utils.CopyString(c.FormValue("videoId")),
		Options: opts.WithDefaults(h.service.Defaults()),
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.Rejected(c, fiber.StatusBadRequest, response.CodeValidationError, "Validation failed", 0, formatValidationErrors(err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read upload")
	}
	defer file.Close()

	mime := fileHeader.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	result, err := h.service.Submit(c.UserContext(), service.SubmitInput{
		VideoID: req.VideoID,
		Mime:    mime,
		Size:    fileHeader.Size,
		Body:    file,
		Options: req.Options,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQueueFull):
			return response.QueueFull(c)
		case errors.Is(err, service.ErrInvalidInput):
			return response.Rejected(c, fiber.StatusBadRequest, response.CodeValidationError, err.Error(), 0, nil)
		default:
			h.logger.Error("submit failed", zap.Error(err))
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/sprites/status/:jobId
// @Summary      Get sprite job status
// @Description  Get the current state and progress of a sprite job
// @Tags         Sprites
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.StatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/sprites/status/{jobId} [get]
func (h *SpritesHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.UserContext(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/sprites/result/:jobId
// @Summary      Get sprite job result
// @Description  Get the sprite sheets and cue track of a finished job
// @Tags         Sprites
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ResultResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/sprites/result/{jobId} [get]
func (h *SpritesHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.UserContext(), jobID)
	if err != nil {
		return h.jobError(c, err)
	}

	return response.OK(c, result)
}

// Sprite handles GET /api/sprites/result/:jobId/sprites/:name
// @Summary      Download sprite sheet
// @Tags         Sprites
// @Produce      image/jpeg,image/png
// @Param        jobId path string true "Job ID"
// @Param        name  path string true "Sheet file name"
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/sprites/result/{jobId}/sprites/{name} [get]
func (h *SpritesHandler) Sprite(c *fiber.Ctx) error {
	sprite, err := h.service.GetSprite(c.UserContext(), c.Params("jobId"), c.Params("name"))
	if err != nil {
		return h.jobError(c, err)
	}

	contentType := "image/jpeg"
	if strings.HasSuffix(sprite.Name, "."+model.FormatPNG) {
		contentType = "image/png"
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(sprite.Data)
}

// VTT handles GET /api/sprites/result/:jobId/vtt
// @Summary      Download cue track
// @Tags         Sprites
// @Produce      text/vtt
// @Param        jobId path string true "Job ID"
// @Success      200 {string} string
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/sprites/result/{jobId}/vtt [get]
func (h *SpritesHandler) VTT(c *fiber.Ctx) error {
	vtt, err := h.service.GetVTT(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return h.jobError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/vtt; charset=utf-8")
	return c.SendString(vtt)
}

// Cancel handles POST /api/sprites/cancel/:jobId
// @Summary      Cancel sprite job
// @Description  Cancel a queued or running sprite job
// @Tags         Sprites
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/sprites/cancel/{jobId} [post]
func (h *SpritesHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	return response.OK(c, h.service.Cancel(c.UserContext(), jobID))
}

func (h *SpritesHandler) jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotReady):
		return response.NotReady(c, "Job not completed yet")
	default:
		return response.ServiceError(c, err.Error())
	}
}

// parseOptions reads the numeric form fields. Empty fields stay zero so defaults apply.
func parseOptions(c *fiber.Ctx) (model.SpriteOptions, map[string]string) {
	var opts model.SpriteOptions
	details := make(map[string]string)

	if v := strings.TrimSpace(c.FormValue("stepSec")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			details["stepSec"] = "gt"
		}
		opts.StepSec = f
	}
	parseInt := func(field string, dst *int) {
		v := strings.TrimSpace(c.FormValue(field))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			details[field] = "gt"
			return
		}
		*dst = n
	}
	parseInt("columns", &opts.Columns)
	parseInt("rows", &opts.Rows)
	parseInt("quality", &opts.Quality)
	opts.Format = utils.CopyString(strings.ToLower(strings.TrimSpace(c.FormValue("format"))))

	if len(details) > 0 {
		return opts, details
	}
	return opts, nil
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
