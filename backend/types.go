package backend

// Wire types for the Lunef backend REST API.

// TagResolution is the result of resolving a @luneftag to a wallet address.
type TagResolution struct {
	Tag         string `json:"tag"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
}

// Conversion is a fiat → GAS quote.
type Conversion struct {
	FiatAmount   float64 `json:"fiat_amount"`
	FiatCurrency string  `json:"fiat_currency"`
	GasAmount    string  `json:"gas_amount"`
	FXRate       float64 `json:"fx_rate"`
	GasPriceUSD  float64 `json:"gas_price_usd"`
}

// Balance is the caller's wallet balance.
type Balance struct {
	GasBalance     string  `json:"gas_balance"`
	FiatEquivalent float64 `json:"fiat_equivalent"`
	FiatCurrency   string  `json:"fiat_currency"`
	Address        string  `json:"address"`
}

// PreviewRequest asks the backend to quote a payment.
type PreviewRequest struct {
	ToAddress    string  `json:"to_address"`
	ToTag        string  `json:"to_tag"`
	AmountGAS    string  `json:"amount_gas"`
	FiatAmount   float64 `json:"fiat_amount"`
	FiatCurrency string  `json:"fiat_currency"`
}

// PaymentPreview is a server-issued, time-bounded payment quote awaiting
// user confirmation. The session keeps only its PreviewID.
type PaymentPreview struct {
	PreviewID    string  `json:"preview_id"`
	FromAddress  string  `json:"from_address"`
	ToAddress    string  `json:"to_address"`
	ToTag        string  `json:"to_tag"`
	AmountGAS    string  `json:"amount_gas"`
	FiatAmount   float64 `json:"fiat_amount"`
	FiatCurrency string  `json:"fiat_currency"`
	EstimatedFee string  `json:"estimated_fee"`
	TotalGAS     string  `json:"total_gas"`
	Status       string  `json:"status"`
}

// Preview statuses issued by the backend.
const (
	PreviewAwaitingConfirmation = "awaiting_confirmation"
	PreviewExpired              = "expired"
	PreviewExecuted             = "executed"
)

// TransactionResult is the immutable outcome of a successful execute call.
type TransactionResult struct {
	TxHash      string `json:"tx_hash"`
	ExplorerURL string `json:"explorer_url"`
	AmountGAS   string `json:"amount_gas"`
	ToTag       string `json:"to_tag"`
	Status      string `json:"status"`
}

// VideoRequest asks the backend to generate a video. The backend settles the
// machine-to-machine x402 payment itself; EstimatedCostUSDC is the client's
// off-chain estimate, carried for display and reconciliation.
type VideoRequest struct {
	Prompt            string  `json:"prompt"`
	DurationSeconds   int     `json:"duration_seconds"`
	Style             string  `json:"style"`
	EstimatedCostUSDC float64 `json:"estimated_cost_usdc"`
}

// VideoResult is a completed video generation purchase.
type VideoResult struct {
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	CostGAS      string `json:"cost_gas"`
	PurchaseID   string `json:"purchase_id"`
}
