package handlers

import (
	"net/http"

	"galamsey-report-backend/internal/models"
	"github.com/gin-gonic/gin"
)

var categoryDescriptions = map[string]string{
	models.CategoryWaterPollution:    "Rivers or water bodies contaminated by mining",
	models.CategoryForestDestruction: "Forest cleared or burned for mining",
	models.CategoryMiningPits:        "Open or abandoned mining pits",
	models.CategoryOther:             "Any other mining-related damage",
}

// ListCategories godoc
// @Summary     List report categories
// @Description Categories the AI classifier assigns. Use them as the admin listing filter.
// @Tags        categories
// @Produce     json
// @Security    Bearer
// @Success     200 {array} models.CategoryResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /categories [get]
func ListCategories(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	out := make([]models.CategoryResponse, len(models.Categories))
	for i, category := range models.Categories {
		out[i] = models.CategoryResponse{Category: category, Description: categoryDescriptions[category]}
	}
	c.JSON(http.StatusOK, out)
}
