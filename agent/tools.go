package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lunef/agent-go/backend"
	"github.com/lunef/agent-go/core"
	"github.com/lunef/agent-go/logger"
)

// ToolDeps holds shared dependencies for all payment tools.
type ToolDeps struct {
	Client   *backend.Client
	TagCache *ristretto.Cache
	Validate *validator.Validate
	Log      logger.Logger

	// VideoCostPerSecondUSDC prices the off-chain video cost estimate.
	// Display only: the backend settles the actual x402 payment.
	VideoCostPerSecondUSDC decimal.Decimal
}

// SupportedCurrencies are the fiat currencies users may speak amounts in.
var SupportedCurrencies = []string{"GBP", "EUR", "USD", "CHF"}

// VideoStyles are the accepted visual styles for generated videos.
var VideoStyles = []string{"cinematic", "anime", "realistic", "artistic", "cartoon"}

const (
	minVideoDuration     = 5
	maxVideoDuration     = 30
	defaultVideoDuration = 10
	defaultVideoStyle    = "cinematic"

	tagCacheTTL = 10 * time.Minute
)

// CreateTools returns all Lunef payment tools.
func CreateTools(deps *ToolDeps) []*core.Tool {
	if deps.Log == nil {
		deps.Log = logger.NoopLogger{}
	}
	return []*core.Tool{
		createResolveTagTool(deps),
		createConvertFiatTool(deps),
		createCheckBalanceTool(deps),
		createPaymentPreviewTool(deps),
		createExecutePaymentTool(deps),
		createGenerateVideoTool(deps),
	}
}

// ────────────────────────────────────────────────────────────────────────────
// resolve_tag
// ────────────────────────────────────────────────────────────────────────────

func createResolveTagTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "resolve_tag",
		Description: "Resolves a Lunef tag (like @alice or @bob) to the recipient's Neo X wallet address. " +
			"Use this when the user mentions sending money to someone by their @tag.",
		InputSchema: core.ObjectSchema(map[string]interface{}{
			"tag": core.StringProperty("The Lunef tag to resolve (e.g., '@alice', 'alice', or '@bob')"),
		}, "tag"),
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				Tag string `json:"tag"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}

			clean := strings.ToLower(strings.TrimLeft(strings.TrimSpace(input.Tag), "@"))
			if clean == "" {
				return core.Errorf("Empty tag provided"), nil
			}

			if deps.TagCache != nil {
				if cached, ok := deps.TagCache.Get("tag:" + clean); ok {
					if res, ok := cached.(*backend.TagResolution); ok {
						return &core.ToolResult{Success: true, Data: tagResolutionData(res)}, nil
					}
				}
			}

			res, err := deps.Client.ResolveTag(ctx, clean)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			if deps.TagCache != nil {
				deps.TagCache.SetWithTTL("tag:"+clean, res, 1, tagCacheTTL)
			}
			return &core.ToolResult{Success: true, Data: tagResolutionData(res)}, nil
		},
	}
}

func tagResolutionData(res *backend.TagResolution) map[string]interface{} {
	return map[string]interface{}{
		"tag":          res.Tag,
		"address":      res.Address,
		"display_name": res.DisplayName,
	}
}

// ────────────────────────────────────────────────────────────────────────────
// convert_fiat_to_gas
// ────────────────────────────────────────────────────────────────────────────

func createConvertFiatTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "convert_fiat_to_gas",
		Description: "Converts a fiat currency amount (GBP, EUR, USD, CHF) to Neo X GAS. " +
			"Use this when the user specifies an amount in fiat like '200 pounds' or '50 euros'.",
		InputSchema: core.ObjectSchema(map[string]interface{}{
			"amount":   core.NumberProperty("The amount in fiat currency"),
			"currency": core.StringEnumProperty("The fiat currency code (GBP, EUR, USD, or CHF)", SupportedCurrencies...),
		}, "amount", "currency"),
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				Amount   float64 `json:"amount"`
				Currency string  `json:"currency"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}

			currency := strings.ToUpper(strings.TrimSpace(input.Currency))
			if !isSupportedCurrency(currency) {
				return core.Errorf("Unsupported currency: %s. Use GBP, EUR, USD, or CHF.", currency), nil
			}
			if input.Amount <= 0 {
				return core.Errorf("Amount must be positive"), nil
			}

			conv, err := deps.Client.FiatToGAS(ctx, currency, input.Amount)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			return &core.ToolResult{Success: true, Data: map[string]interface{}{
				"fiat_amount":   conv.FiatAmount,
				"fiat_currency": conv.FiatCurrency,
				"gas_amount":    conv.GasAmount,
				"fx_rate":       conv.FXRate,
				"gas_price_usd": conv.GasPriceUSD,
			}}, nil
		},
	}
}

func isSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// ────────────────────────────────────────────────────────────────────────────
// check_balance
// ────────────────────────────────────────────────────────────────────────────

func createCheckBalanceTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "check_balance",
		Description: "Checks the current GAS balance of the user's Neo X wallet. " +
			"Use this when the user asks about their balance or before making a payment to verify funds.",
		InputSchema: core.ObjectSchema(map[string]interface{}{}),
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			if params.UserID == "" {
				return core.Errorf("User not identified"), nil
			}

			bal, err := deps.Client.Balance(ctx, params.UserID)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			return &core.ToolResult{Success: true, Data: map[string]interface{}{
				"gas_balance":     bal.GasBalance,
				"fiat_equivalent": bal.FiatEquivalent,
				"fiat_currency":   bal.FiatCurrency,
				"address":         bal.Address,
			}}, nil
		},
	}
}

// ────────────────────────────────────────────────────────────────────────────
// create_payment_preview
// ────────────────────────────────────────────────────────────────────────────

type paymentPreviewInput struct {
	ToAddress    string  `json:"to_address" validate:"required"`
	ToTag        string  `json:"to_tag" validate:"required"`
	AmountGAS    string  `json:"amount_gas" validate:"required"`
	FiatAmount   float64 `json:"fiat_amount" validate:"gt=0"`
	FiatCurrency string  `json:"fiat_currency" validate:"required,oneof=GBP EUR USD CHF"`
}

func createPaymentPreviewTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "create_payment_preview",
		Description: "Creates a payment preview that shows the user exactly what will be sent. " +
			"Use this after resolving the recipient tag and converting the fiat amount to GAS. " +
			"The preview includes fee estimates and requires voice confirmation before execution.",
		InputSchema: core.ObjectSchema(map[string]interface{}{
			"to_address":    core.StringProperty("The recipient's Neo X address"),
			"to_tag":        core.StringProperty("The recipient's @tag for display purposes"),
			"amount_gas":    core.StringProperty("The amount of GAS to send"),
			"fiat_amount":   core.NumberProperty("The original fiat amount for display"),
			"fiat_currency": core.StringEnumProperty("The fiat currency code (GBP, EUR, USD, CHF)", SupportedCurrencies...),
		}, "to_address", "to_tag", "amount_gas", "fiat_amount", "fiat_currency"),
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input paymentPreviewInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}
			input.FiatCurrency = strings.ToUpper(input.FiatCurrency)
			if err := deps.Validate.Struct(&input); err != nil {
				return core.Errorf("Invalid payment request: %v", err), nil
			}

			preview, err := deps.Client.CreatePreview(ctx, params.UserID, &backend.PreviewRequest{
				ToAddress:    input.ToAddress,
				ToTag:        input.ToTag,
				AmountGAS:    input.AmountGAS,
				FiatAmount:   input.FiatAmount,
				FiatCurrency: input.FiatCurrency,
			})
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			deps.Log.Info("payment preview created", map[string]any{
				"user_id":    params.UserID,
				"preview_id": preview.PreviewID,
				"to_tag":     preview.ToTag,
			})

			return &core.ToolResult{Success: true, Data: map[string]interface{}{
				"preview_id":    preview.PreviewID,
				"from_address":  preview.FromAddress,
				"to_address":    preview.ToAddress,
				"to_tag":        preview.ToTag,
				"amount_gas":    preview.AmountGAS,
				"fiat_amount":   preview.FiatAmount,
				"fiat_currency": preview.FiatCurrency,
				"estimated_fee": preview.EstimatedFee,
				"total_gas":     preview.TotalGAS,
				"status":        preview.Status,
				"confirmation_message": fmt.Sprintf(
					"You're about to send %g %s (approximately %s GAS) to %s. Please confirm by saying 'yes' or 'confirm'.",
					preview.FiatAmount, preview.FiatCurrency, preview.AmountGAS, preview.ToTag),
			}}, nil
		},
	}
}

// ────────────────────────────────────────────────────────────────────────────
// execute_payment
// ────────────────────────────────────────────────────────────────────────────

func createExecutePaymentTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "execute_payment",
		Description: "Executes a payment after the user has confirmed it. " +
			"Only use this after receiving explicit confirmation from the user. " +
			"The payment will be broadcast to the Neo X blockchain.",
		InputSchema: core.ObjectSchema(map[string]interface{}{
			"preview_id": core.StringProperty("The payment preview ID from create_payment_preview"),
		}, "preview_id"),
		RequiresConfirmation: true,
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				PreviewID string `json:"preview_id" validate:"required,uuid4"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}
			if err := deps.Validate.Struct(&input); err != nil {
				return core.Errorf("Invalid preview id"), nil
			}

			tx, err := deps.Client.ExecutePayment(ctx, params.UserID, input.PreviewID)
			if err != nil {
				if backend.IsTimeout(err) {
					// Not a success and not a failure: the transaction was
					// submitted and may still land.
					return &core.ToolResult{Success: true, Data: map[string]interface{}{
						"warning": "Transaction may still be processing",
						"message": err.Error(),
					}}, nil
				}
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			deps.Log.Info("payment executed", map[string]any{
				"user_id":    params.UserID,
				"preview_id": input.PreviewID,
				"tx_hash":    tx.TxHash,
			})

			return &core.ToolResult{Success: true, Data: map[string]interface{}{
				"success":      true,
				"tx_hash":      tx.TxHash,
				"explorer_url": tx.ExplorerURL,
				"amount_gas":   tx.AmountGAS,
				"to_tag":       tx.ToTag,
				"status":       tx.Status,
				"confirmation_message": fmt.Sprintf(
					"Payment sent successfully! %s GAS has been sent to %s. Transaction: %s...",
					tx.AmountGAS, tx.ToTag, shortHash(tx.TxHash)),
			}}, nil
		},
	}
}

// ────────────────────────────────────────────────────────────────────────────
// generate_video
// ────────────────────────────────────────────────────────────────────────────

func createGenerateVideoTool(deps *ToolDeps) *core.Tool {
	return &core.Tool{
		Name: "generate_video",
		Description: "Generates an AI video based on a text prompt. " +
			"This uses the x402 protocol for machine-to-machine payment; the user is charged in GAS " +
			"and the backend handles the x402 payment automatically.",
		InputSchema: core.ObjectSchema(map[string]interface{}{
			"prompt":           core.StringProperty("The text prompt describing the video to generate"),
			"duration_seconds": core.IntegerRangeProperty("Video duration in seconds (5-30)", minVideoDuration, maxVideoDuration),
			"style":            core.StringEnumProperty("The visual style for the video", VideoStyles...),
		}, "prompt"),
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input struct {
				Prompt          string `json:"prompt"`
				DurationSeconds int    `json:"duration_seconds"`
				Style           string `json:"style"`
			}
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return core.Errorf("invalid input: %v", err), nil
			}
			if strings.TrimSpace(input.Prompt) == "" {
				return core.Errorf("A video prompt is required"), nil
			}

			duration := input.DurationSeconds
			if duration == 0 {
				duration = defaultVideoDuration
			}
			if duration < minVideoDuration {
				duration = minVideoDuration
			}
			if duration > maxVideoDuration {
				duration = maxVideoDuration
			}

			style := input.Style
			if style == "" {
				style = defaultVideoStyle
			}
			if !isVideoStyle(style) {
				return core.Errorf("Unsupported style: %s", style), nil
			}

			// Off-chain estimate for display and logging. The actual
			// machine-to-machine payment is negotiated by the backend.
			cost := deps.VideoCostPerSecondUSDC.Mul(decimal.NewFromInt(int64(duration)))
			costUSDC, _ := cost.Float64()

			deps.Log.Debug("video generation requested", map[string]any{
				"user_id":          params.UserID,
				"duration_seconds": duration,
				"style":            style,
				"estimated_usdc":   cost.StringFixed(2),
			})

			video, err := deps.Client.GenerateVideo(ctx, params.UserID, &backend.VideoRequest{
				Prompt:            input.Prompt,
				DurationSeconds:   duration,
				Style:             style,
				EstimatedCostUSDC: costUSDC,
			})
			if err != nil {
				if backend.IsTimeout(err) {
					return &core.ToolResult{Success: true, Data: map[string]interface{}{
						"status":  "processing",
						"message": err.Error(),
					}}, nil
				}
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}

			return &core.ToolResult{Success: true, Data: map[string]interface{}{
				"success":          true,
				"video_url":        video.VideoURL,
				"thumbnail_url":    video.ThumbnailURL,
				"duration_seconds": duration,
				"style":            style,
				"cost_gas":         video.CostGAS,
				"cost_usdc":        costUSDC,
				"purchase_id":      video.PurchaseID,
				"status":           "ready",
				"message": fmt.Sprintf("Video generated successfully! Duration: %ds, Style: %s. Cost: %s GAS.",
					duration, style, video.CostGAS),
			}}, nil
		},
	}
}

func isVideoStyle(style string) bool {
	for _, s := range VideoStyles {
		if s == style {
			return true
		}
	}
	return false
}
