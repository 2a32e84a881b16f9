package handler

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"anoa.com/unimarket/internal/entity"
	"anoa.com/unimarket/internal/modules/product/dto"
	product "anoa.com/unimarket/internal/modules/product/service"
	"anoa.com/unimarket/pkg/apperror"
	commonDto "anoa.com/unimarket/pkg/dto"
	"anoa.com/unimarket/pkg/response"
	"anoa.com/unimarket/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImageSize = 5 << 20

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type ProductHandler struct {
	service product.Service
}

func NewProductHandler(service product.Service) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) Search(c *gin.Context) {
	var filter commonDto.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.Search(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "product_id")
	if !ok {
		return
	}

	res, err := h.service.GetProduct(c.Request.Context(), id, response.OptionalIdentity(c), c.ClientIP())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.CreateProduct(c.Request.Context(), identity, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, ok := parseID(c, "product_id")
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.UpdateProduct(c.Request.Context(), identity, id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) UpdateStatus(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, ok := parseID(c, "product_id")
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.UpdateStatus(c.Request.Context(), identity, id, req.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, ok := parseID(c, "product_id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(c.Request.Context(), identity, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product deleted successfully"})
}

func (h *ProductHandler) ListBySeller(c *gin.Context) {
	var page commonDto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	res, err := h.service.ListBySeller(c.Request.Context(), c.Param("handle"), response.OptionalIdentity(c), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) UploadImages(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, ok := parseID(c, "product_id")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form with images"})
		return
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images provided"})
		return
	}
	if len(headers) > entity.MaxImagesPerProduct {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many images"})
		return
	}

	files := make([]commonDto.ImageFile, 0, len(headers))
	for _, fh := range headers {
		if err := checkImage(fh); err != nil {
			response.ResponseError(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
			return
		}
		defer f.Close()

		files = append(files, commonDto.ImageFile{Reader: f, FileName: fh.Filename, Size: fh.Size})
	}

	images, err := h.service.UploadImages(c.Request.Context(), identity, id, files)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": images})
}

func (h *ProductHandler) DeleteImage(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	productID, ok := parseID(c, "product_id")
	if !ok {
		return
	}
	imageID, ok := parseID(c, "image_id")
	if !ok {
		return
	}

	if err := h.service.DeleteImage(c.Request.Context(), identity, productID, imageID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "image deleted successfully"})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + strings.ReplaceAll(param, "_", " ")})
		return uuid.Nil, false
	}
	return id, true
}

func checkImage(fh *multipart.FileHeader) error {
	if fh.Size > maxImageSize {
		return apperror.New(http.StatusRequestEntityTooLarge, fh.Filename+" exceeds the 5MB limit", nil)
	}
	if !allowedImageExt[strings.ToLower(filepath.Ext(fh.Filename))] {
		return apperror.New(http.StatusUnsupportedMediaType, fh.Filename+" is not a supported image type", nil)
	}
	return nil
}
