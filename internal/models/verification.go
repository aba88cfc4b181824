package models

import "time"

const (
	VerificationPending    = "pending"
	VerificationIncomplete = "incomplete"
	VerificationVerified   = "verified"
)

type CompanyVerifyRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website,omitempty"`
}

type BatchVerifyRequest struct {
	Companies []CompanyVerifyRequest `json:"companies"`
}

type VerificationChecks struct {
	WebsiteExists bool              `json:"website_exists"`
	SSLValid      bool              `json:"ssl_valid"`
	SocialMedia   map[string]string `json:"social_media"`
}

type VerificationResult struct {
	CompanyName        string             `json:"company_name"`
	Website            string             `json:"website,omitempty"`
	VerificationStatus string             `json:"verification_status"`
	ConfidenceScore    float64            `json:"confidence_score"`
	Checks             VerificationChecks `json:"checks"`
	RiskFlags          []string           `json:"risk_flags"`
	Timestamp          time.Time          `json:"timestamp"`
}
