package dto

import (
	"math"

	apperrors "crm-gin/internal/errors"
)

// ===========================================================================
// Response DTOs
// Every REST endpoint answers with the Response envelope
// ===========================================================================

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	// Code is machine readable, e.g. "NOT_FOUND"
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta pagination info
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func NewMeta(page, limit int, total int64) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// ===========================================================================
// Response builders
// ===========================================================================

func Success(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

func SuccessWithMeta(data interface{}, meta *Meta) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}

func Error(code, message string) Response {
	return Response{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorFromErr maps an application error to its code and user message.
// Errors without a message get a generic one so internals never leak.
func ErrorFromErr(err error) Response {
	return Error(apperrors.ErrorCode(err), apperrors.Message(err, "Une erreur interne est survenue"))
}

// ===========================================================================
// Payloads
// ===========================================================================

type LoginResponse struct {
	User         interface{} `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int         `json:"expires_in"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
