package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	technostore "github.com/technostore/technostore/go"
	"github.com/technostore/technostore/go/node"
)

// API error codes that do not come from the store.
const (
	ErrCodeBadRequest         = "BadRequest"
	ErrCodeInvalidTransaction = "InvalidTransaction"
	ErrCodeInternal           = "Internal"
)

// ErrorResponse is the body of every non-2xx response except reverted
// transactions, which return their receipt.
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}

// StatusForCode maps a store error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case technostore.ErrCodeNotOwner:
		return http.StatusForbidden
	case technostore.ErrCodeIndexOutOfRange, technostore.ErrCodeProductNotFound:
		return http.StatusNotFound
	case technostore.ErrCodeProductAlreadyBought, technostore.ErrCodeProductNotBought, technostore.ErrCodeInsufficientAmount:
		return http.StatusConflict
	case technostore.ErrCodeRefundExpired, technostore.ErrCodePermitExpired:
		return http.StatusGone
	case technostore.ErrCodeInvalidInputs, technostore.ErrCodePermitInvalid, technostore.ErrCodeHookAborted:
		return http.StatusUnprocessableEntity
	case technostore.ErrCodeTransferFailed:
		return http.StatusPaymentRequired
	case ErrCodeBadRequest, ErrCodeInvalidTransaction:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) ErrorResponse {
	var se *technostore.StoreError
	switch {
	case errors.As(err, &se):
		return ErrorResponse{Code: se.Code, Message: se.Message, Details: se.Details}
	case errors.Is(err, node.ErrInvalidTx):
		return ErrorResponse{Code: ErrCodeInvalidTransaction, Message: err.Error()}
	default:
		return ErrorResponse{Code: ErrCodeInternal, Message: err.Error()}
	}
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse(err)
	resp.RequestID = c.GetString(requestIDKey)
	status := StatusForCode(resp.Code)
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "path", c.FullPath(), "requestId", resp.RequestID, "error", err)
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Code:      ErrCodeBadRequest,
		Message:   message,
		Details:   details,
		RequestID: c.GetString(requestIDKey),
	})
}
