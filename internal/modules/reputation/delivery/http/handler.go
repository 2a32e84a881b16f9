package handler

import (
	"net/http"

	repDto "anoa.com/unimarket/internal/modules/reputation/dto"
	reputation "anoa.com/unimarket/internal/modules/reputation/service"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/response"
	"anoa.com/unimarket/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReputationHandler struct {
	service reputation.Service
}

func NewReputationHandler(service reputation.Service) *ReputationHandler {
	return &ReputationHandler{service: service}
}

func (h *ReputationHandler) SubmitRating(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req repDto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.SubmitRating(c.Request.Context(), identity, c.Param("handle"), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReputationHandler) CanRate(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query repDto.CanRateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	var productID *uuid.UUID
	if query.ProductID != "" {
		id, err := uuid.Parse(query.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		productID = &id
	}

	res, err := h.service.Eligibility(c.Request.Context(), identity, c.Param("handle"), productID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ReputationHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetSummary(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ReputationHandler) ListRatings(c *gin.Context) {
	var page commonDto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.ListReceivedRatings(c.Request.Context(), c.Param("handle"), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
