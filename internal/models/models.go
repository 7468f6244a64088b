package models

import "time"

// Severity classifies how material a detected change is.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns the ordinal position of a severity (none < low < medium < high).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Status is the outcome of comparing a baseline against a new observation.
type Status string

const (
	StatusSecure  Status = "secure"
	StatusChanged Status = "changed"
)

// ClaimType classifies a patent claim.
type ClaimType string

const (
	ClaimComposition ClaimType = "composition"
	ClaimMethodOfUse ClaimType = "method_of_use"
	ClaimFormulation ClaimType = "formulation"
	ClaimProcess     ClaimType = "process"
	ClaimOther       ClaimType = "other"
)

// Change categories referenced by ComparisonResult.ChangedFields and DiffDetails.
const (
	CategoryPatents     = "patents"
	CategoryTrade       = "trade"
	CategoryMarket      = "market"
	CategoryRegulatory  = "regulatory"
	CategoryInternalDoc = "internal_doc"
	CategoryOther       = "other"
)

// PatentAssertion is one patent relevant to the monitored drug or indication.
// Blocking is a pointer because "unknown" is distinct from "not blocking".
type PatentAssertion struct {
	PatentNumber string     `json:"patent_number" bson:"patent_number"`
	Expiry       *time.Time `json:"expiry,omitempty" bson:"expiry,omitempty"`
	ClaimType    ClaimType  `json:"claim_type" bson:"claim_type"`
	Title        string     `json:"title" bson:"title"`
	Blocking     *bool      `json:"blocking,omitempty" bson:"blocking,omitempty"`
}

// TradePosture captures the trade/supply-chain facts of a snapshot. All fields
// are optional so absent upstream data stays distinguishable from zero.
type TradePosture struct {
	ImportDependencyRatio *float64 `json:"import_dependency_ratio,omitempty" bson:"import_dependency_ratio,omitempty"`
	YoYChange             *float64 `json:"yoy_change,omitempty" bson:"yoy_change,omitempty"`
	TradeTotal            *float64 `json:"trade_total,omitempty" bson:"trade_total,omitempty"`
}

// RegulatoryMention is a regulatory-risk keyword detected in news or derived text.
type RegulatoryMention struct {
	Keyword       string `json:"keyword" bson:"keyword"`
	SourceSnippet string `json:"source_snippet" bson:"source_snippet"`
}

// DocAssertion is a sentence-level claim pulled from internal notes or an
// uploaded document. SourceSnippet retains the raw sentence for auditability.
type DocAssertion struct {
	Statement     string `json:"statement" bson:"statement"`
	SourceSnippet string `json:"source_snippet" bson:"source_snippet"`
}

// AssertionSet is the canonical, comparable fact snapshot derived from one
// input source (a multi-agent payload bundle or a raw document).
type AssertionSet struct {
	Patents               []PatentAssertion      `json:"patents" bson:"patents"`
	Trade                 TradePosture           `json:"trade" bson:"trade"`
	Market                map[string]interface{} `json:"market" bson:"market"`
	Regulatory            []RegulatoryMention    `json:"regulatory" bson:"regulatory"`
	InternalDocAssertions []DocAssertion         `json:"internal_doc_assertions" bson:"internal_doc_assertions"`
	OtherFlags            []string               `json:"other_flags" bson:"other_flags"`
}

// CategoryDiff summarizes what a category looked like before and after.
type CategoryDiff struct {
	OldValue string `json:"old_value" bson:"old_value"`
	NewValue string `json:"new_value" bson:"new_value"`
}

// ComparisonResult is the outcome of diffing two assertion sets.
type ComparisonResult struct {
	Status               Status                  `json:"status" bson:"status"`
	ChangedFields        []string                `json:"changed_fields" bson:"changed_fields"`
	Severity             Severity                `json:"severity" bson:"severity"`
	DiffDetails          map[string]CategoryDiff `json:"diff_details" bson:"diff_details"`
	RequiresManualReview bool                    `json:"requires_manual_review" bson:"requires_manual_review"`
	DecisionReason       string                  `json:"decision_reason" bson:"decision_reason"`
}

// Notification is the persisted alert record for one monitored topic. It is
// uniquely identified by (SessionID, PromptID) for lookup and by
// NotificationID for external reference.
type Notification struct {
	NotificationID       string                  `json:"notification_id" bson:"notification_id"`
	SessionID            string                  `json:"session_id" bson:"session_id"`
	PromptID             string                  `json:"prompt_id" bson:"prompt_id"`
	Enabled              bool                    `json:"enabled" bson:"enabled"`
	Status               Status                  `json:"status" bson:"status"`
	Severity             Severity                `json:"severity" bson:"severity"`
	ChangedFields        []string                `json:"changed_fields" bson:"changed_fields"`
	DiffDetails          map[string]CategoryDiff `json:"diff_details" bson:"diff_details"`
	DecisionReason       string                  `json:"decision_reason" bson:"decision_reason"`
	RequiresManualReview bool                    `json:"requires_manual_review" bson:"requires_manual_review"`
	CreatedAt            time.Time               `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at" bson:"updated_at"`
}

// AgentSnapshot is one recorded multi-agent output bundle for a monitored
// topic. Payloads maps an upstream agent identifier to that agent's raw output.
type AgentSnapshot struct {
	SessionID  string                 `json:"session_id" bson:"session_id"`
	PromptID   string                 `json:"prompt_id" bson:"prompt_id"`
	Payloads   map[string]interface{} `json:"payloads" bson:"payloads"`
	RecordedAt time.Time              `json:"recorded_at" bson:"recorded_at"`
}
