package handler

import (
	"context"
	"net/http"

	"anoa.com/unimarket/internal/entity"
	studentDto "anoa.com/unimarket/internal/modules/student/dto"
	student "anoa.com/unimarket/internal/modules/student/service"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/response"
	"anoa.com/unimarket/pkg/validator"
	"github.com/gin-gonic/gin"
)

// ReputationReader provides the reputation summary shown on profiles.
type ReputationReader interface {
	SummaryFor(ctx context.Context, st *entity.Student) (*commonDto.ReputationSummary, error)
}

type StudentHandler struct {
	service    student.Service
	reputation ReputationReader
}

func NewStudentHandler(service student.Service, reputation ReputationReader) *StudentHandler {
	return &StudentHandler{
		service:    service,
		reputation: reputation,
	}
}

func (h *StudentHandler) Register(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req studentDto.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	st, err := h.service.Register(c.Request.Context(), identity, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, studentDto.NewProfileResponse(st, nil, true))
}

func (h *StudentHandler) GetMe(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	st, err := h.service.GetMe(c.Request.Context(), identity)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	h.writeProfile(c, st, true)
}

func (h *StudentHandler) UpdateMe(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req studentDto.UpdateStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	var avatar *commonDto.ImageFile
	if fileHeader, err := c.FormFile("avatar"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read avatar"})
			return
		}
		defer file.Close()

		avatar = &commonDto.ImageFile{
			Reader:   file,
			FileName: fileHeader.Filename,
			Size:     fileHeader.Size,
		}
	}

	st, err := h.service.UpdateProfile(c.Request.Context(), identity, req, avatar)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	h.writeProfile(c, st, true)
}

func (h *StudentHandler) List(c *gin.Context) {
	var filter studentDto.StudentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *StudentHandler) GetByHandle(c *gin.Context) {
	st, err := h.service.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	isOwner := false
	if identity := response.OptionalIdentity(c); identity != "" {
		isOwner = identity == st.IdentityRef
	}

	h.writeProfile(c, st, isOwner)
}

func (h *StudentHandler) writeProfile(c *gin.Context, st *entity.Student, isOwner bool) {
	var summary *commonDto.ReputationSummary
	if h.reputation != nil {
		var err error
		summary, err = h.reputation.SummaryFor(c.Request.Context(), st)
		if err != nil {
			response.ResponseError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, studentDto.NewProfileResponse(st, summary, isOwner))
}
