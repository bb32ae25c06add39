package dto

import (
	"time"

	"price-cache-api/internal/models"
)

// TokenPriceResponse represents the response for a token price request
type TokenPriceResponse struct {
	Success bool                   `json:"success"`
	Data    *models.TokenPriceData `json:"data"`
	Error   *ErrorInfo             `json:"error,omitempty"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Success bool        `json:"success"`
	Data    *HealthData `json:"data"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// HealthData represents health status information
type HealthData struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// BuildTokenPriceResponse builds a successful token price response
func BuildTokenPriceResponse(data *models.TokenPriceData) *TokenPriceResponse {
	return &TokenPriceResponse{
		Success: true,
		Data:    data,
	}
}

// BuildErrorResponse builds an error response
func BuildErrorResponse(code, message string, details interface{}) interface{} {
	return map[string]interface{}{
		"success": false,
		"error": &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// BuildHealthResponse builds a health check response
func BuildHealthResponse(healthy bool, services map[string]string) *HealthResponse {
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return &HealthResponse{
		Success: healthy,
		Data: &HealthData{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		},
	}
}
