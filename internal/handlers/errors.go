package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/services"
	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators configures gin's validator: field errors are reported
// under their json/form names, and "order_status" checks order statuses.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		if err := v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return models.IsValidOrderStatus(fl.Field().String())
		}); err != nil {
			utils.LogError(err, "RegisterValidators: failed to register order_status")
		}
	})
}

// respondServiceError maps a service error onto the API error envelope.
// Unexpected errors are logged and hidden behind a generic message.
func respondServiceError(c *gin.Context, err error, op string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondValidationFailed(c, verr.Error(), verr.Fields)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid credentials.", err.Error()))
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, notFoundMessage(err), err.Error()))
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, conflictMessage(err), err.Error()))
	default:
		utils.LogError(err, op+": unexpected error")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "An unexpected error occurred.", "Internal error"))
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrMenuItemNotFound):
		return "Menu item not found."
	case errors.Is(err, services.ErrOrderNotFound):
		return "Order not found."
	case errors.Is(err, services.ErrUserNotFound):
		return "User not found."
	default:
		return "Resource not found."
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrEmailExists):
		return "The email has already been taken."
	case errors.Is(err, services.ErrInsufficientStock):
		return "Insufficient stock for one or more items."
	case errors.Is(err, services.ErrItemUnavailable):
		return "One or more items are not available."
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return "The order cannot move to the requested status."
	default:
		return "The request conflicts with the current state."
	}
}

// pathID reads a positive integer path parameter, responding 400 otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, ok := utils.ParsePositiveID(c.Param(name))
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid "+name+" format.", name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// currentUserID returns the authenticated user's id set by AuthMiddleware.
func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// sendFile writes an export as a download, or inline when requested.
func sendFile(c *gin.Context, file *services.ExportFile, inline bool) {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
