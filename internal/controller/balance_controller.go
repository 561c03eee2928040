package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"balance-api/internal/models"
	"balance-api/internal/service"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			_, err := models.ParseDecimal(fl.Field().String())
			return err == nil
		})
	}
}

type BalanceController struct {
	balanceService service.BalanceService
}

func NewBalanceController(balanceService service.BalanceService) *BalanceController {
	return &BalanceController{
		balanceService: balanceService,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type AmountRequest struct {
	Amount string `json:"amount" binding:"required,amount"`
}

type BalanceResponse struct {
	UserID  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

type CanAffordResponse struct {
	UserID    int64  `json:"user_id"`
	Amount    string `json:"amount"`
	CanAfford bool   `json:"can_afford"`
}

// GetBalance handles GET /api/v1/balances/:userId
func (c *BalanceController) GetBalance(ctx *gin.Context) {
	userID, ok := c.userIDFromPath(ctx)
	if !ok {
		return
	}

	balance, err := c.balanceService.GetBalance(ctx.Request.Context(), userID)
	if err != nil {
		c.respondError(ctx, "Failed to get balance", err)
		return
	}

	ctx.JSON(http.StatusOK, BalanceResponse{
		UserID:  userID,
		Balance: balance.StringFixed(models.CurrencyExponent),
	})
}

// SetBalance handles PUT /api/v1/balances/:userId
func (c *BalanceController) SetBalance(ctx *gin.Context) {
	userID, ok := c.userIDFromPath(ctx)
	if !ok {
		return
	}
	amount, ok := c.amountFromBody(ctx)
	if !ok {
		return
	}

	if err := c.balanceService.SetBalance(ctx.Request.Context(), userID, amount); err != nil {
		c.respondError(ctx, "Failed to set balance", err)
		return
	}

	ctx.JSON(http.StatusOK, BalanceResponse{
		UserID:  userID,
		Balance: amount.StringFixed(models.CurrencyExponent),
	})
}

// AddBalance handles POST /api/v1/balances/:userId/add
func (c *BalanceController) AddBalance(ctx *gin.Context) {
	userID, ok := c.userIDFromPath(ctx)
	if !ok {
		return
	}
	amount, ok := c.amountFromBody(ctx)
	if !ok {
		return
	}

	newBalance, err := c.balanceService.AddBalance(ctx.Request.Context(), userID, amount)
	if err != nil {
		c.respondError(ctx, "Failed to add balance", err)
		return
	}

	ctx.JSON(http.StatusOK, BalanceResponse{
		UserID:  userID,
		Balance: newBalance.StringFixed(models.CurrencyExponent),
	})
}

// SubtractBalance handles POST /api/v1/balances/:userId/subtract
func (c *BalanceController) SubtractBalance(ctx *gin.Context) {
	userID, ok := c.userIDFromPath(ctx)
	if !ok {
		return
	}
	amount, ok := c.amountFromBody(ctx)
	if !ok {
		return
	}

	newBalance, err := c.balanceService.SubtractBalance(ctx.Request.Context(), userID, amount)
	if err != nil {
		c.respondError(ctx, "Failed to subtract balance", err)
		return
	}

	ctx.JSON(http.StatusOK, BalanceResponse{
		UserID:  userID,
		Balance: newBalance.StringFixed(models.CurrencyExponent),
	})
}

// CanAfford handles GET /api/v1/balances/:userId/can-afford?amount=...
func (c *BalanceController) CanAfford(ctx *gin.Context) {
	userID, ok := c.userIDFromPath(ctx)
	if !ok {
		return
	}

	raw := ctx.Query("amount")
	amount, err := models.ParseDecimal(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid amount",
			Message: "amount query parameter must be a positive decimal",
		})
		return
	}

	affordable, err := c.balanceService.CanAfford(ctx.Request.Context(), userID, amount)
	if err != nil {
		c.respondError(ctx, "Failed to check balance", err)
		return
	}

	ctx.JSON(http.StatusOK, CanAffordResponse{
		UserID:    userID,
		Amount:    amount.StringFixed(models.CurrencyExponent),
		CanAfford: affordable,
	})
}

func (c *BalanceController) userIDFromPath(ctx *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid user ID",
			Message: "User ID must be a positive integer",
		})
		return 0, false
	}
	return userID, true
}

func (c *BalanceController) amountFromBody(ctx *gin.Context) (decimal.Decimal, bool) {
	var req AmountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return decimal.Zero, false
	}

	amount, err := models.ParseDecimal(req.Amount)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid amount",
			Message: "amount must be a decimal number",
		})
		return decimal.Zero, false
	}
	return amount, true
}

// respondError maps service errors onto HTTP statuses: business rejections are
// 422, unknown users 404, storage outages 503, everything else 500.
func (c *BalanceController) respondError(ctx *gin.Context, title string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAmount):
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrNegativeAmount),
		errors.Is(err, models.ErrNonPositiveAmount):
		ctx.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrUserNotFound):
		ctx.JSON(http.StatusNotFound, ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrStorageUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   title,
			Message: "storage temporarily unavailable, retry later",
		})
	default:
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   title,
			Message: err.Error(),
		})
	}
}
