package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"price-cache-api/internal/dto"
	"price-cache-api/internal/models"
)

// PriceReader resolves a token's cached price.
type PriceReader interface {
	GetPrice(ctx context.Context, token string) (*models.TokenPriceData, error)
}

type PriceController struct {
	reader PriceReader
	logger *logrus.Logger
}

func NewPriceController(reader PriceReader, logger *logrus.Logger) *PriceController {
	return &PriceController{
		reader: reader,
		logger: logger,
	}
}

func (pc *PriceController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/token-prices/:token", pc.GetTokenPrice)
}

// GetTokenPrice returns the cached price and 24h change for one token. A
// token whose price cannot be resolved, for any reason, is reported as not
// found; the underlying cause goes to the log, not the caller.
func (pc *PriceController) GetTokenPrice(c *gin.Context) {
	token := c.Param("token")

	data, err := pc.reader.GetPrice(c.Request.Context(), token)
	if err != nil {
		pc.logger.WithError(err).WithField("token", token).Warn("Price lookup failed")
		c.JSON(http.StatusNotFound, dto.BuildErrorResponse("PRICE_NOT_FOUND", "no price available for token", nil))
		return
	}
	if data == nil {
		c.JSON(http.StatusNotFound, dto.BuildErrorResponse("PRICE_NOT_FOUND", "no price available for token", nil))
		return
	}

	c.JSON(http.StatusOK, dto.BuildTokenPriceResponse(data))
}
