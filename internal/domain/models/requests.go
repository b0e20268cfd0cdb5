package models

// Requests for the serving and risk HTTP endpoints. Defined in domain for
// consistency and reuse.

type PredictRequest struct {
	Strategy  string             `json:"strategy" validate:"required"`
	Symbol    string             `json:"symbol" validate:"required"`
	Timeframe string             `json:"timeframe" default:"M5" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
	Direction string             `json:"direction" validate:"omitempty,oneof=buy sell"`
	Enhanced  bool               `json:"enhanced" default:"true"`
	Features  map[string]float64 `json:"features" validate:"required,min=1"`
}

type RetrainRequest struct {
	Symbol       string            `json:"symbol" validate:"required"`
	Timeframe    string            `json:"timeframe" default:"M5" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
	Direction    string            `json:"direction" default:"combined" validate:"oneof=buy sell combined"`
	Examples     []TrainingExample `json:"examples" validate:"omitempty"`
	UseStore     bool              `json:"use_store"`
	StoreLimit   int               `json:"store_limit" default:"2000" validate:"gte=0,lte=50000"`
	AllowLenient bool              `json:"allow_lenient"`
}

type AccountInfoRequest struct {
	Balance float64 `json:"balance" validate:"required,gt=0"`
	Equity  float64 `json:"equity" validate:"omitempty,gte=0"`
	Margin  float64 `json:"margin" validate:"omitempty,gte=0"`
}

type PositionsRequest struct {
	Positions []Position `json:"positions" validate:"required"`
}

type WeeklyDrawdownRequest struct {
	Value float64 `json:"value" validate:"gte=0,lte=100"`
}

type RecommendationsRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"M5" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
	Direction string `query:"direction" json:"direction" default:"combined" validate:"oneof=buy sell combined"`
}

type RetrainHistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}
