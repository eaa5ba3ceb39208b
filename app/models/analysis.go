package models

import "time"

// Analysis is one persisted analysis row. file_hash is not unique across the
// table: every user who uploaded the same content owns their own row, while
// the payload itself is canonical per hash.
type Analysis struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	FileHash      string          `db:"file_hash"`
	FranchiseName string          `db:"franchise_name"`
	FilePath      string          `db:"file_path"`
	RiskAnalysis  *AnalysisResult `db:"risk_analysis"`
	ExtractedData map[string]any  `db:"extracted_data"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

const StatusCompleted = "completed"

// AnalysisResult is the structured payload the model is asked to produce and
// the body of a successful upload response.
type AnalysisResult struct {
	FranchiseName   string     `json:"franchise_name"`
	CNPJ            string     `json:"cnpj"`
	Score           int        `json:"score"`
	Summary         string     `json:"summary"`
	Financials      Financials `json:"financials"`
	Risks           []Risk     `json:"risks"`
	MissingClauses  []string   `json:"missingClauses"`
	Recommendations []string   `json:"recommendations"`
	Filename        string     `json:"filename,omitempty"`
	UploadDate      string     `json:"uploadDate,omitempty"`
	FromCache       bool       `json:"from_cache,omitempty"`
}

type Financials struct {
	InitialInvestment string `json:"initial_investment"`
	FranchiseFee      string `json:"franchise_fee"`
	Royalties         string `json:"royalties"`
	AdvertisingFund   string `json:"advertising_fund"`
	PaybackPeriod     string `json:"payback_period"`
	Profitability     string `json:"profitability"`
}

type Risk struct {
	Severity    string `json:"severity"` // "high", "medium" or "low"
	Title       string `json:"title"`
	Description string `json:"description"`
}
