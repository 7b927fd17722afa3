// FilePath: internal/models/models.report.go
package models

import (
	"io"
	"time"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportVerified ReportStatus = "verified"
	ReportRejected ReportStatus = "rejected"
)

// LeakReport is a user-submitted leak photo that passed verification.
// Reports are immutable once verified.
type LeakReport struct {
	ID                      string       `json:"id" db:"id" readxs:"*"`
	UserID                  string       `json:"user_id" db:"user_id" readxs:"owner,admin"`
	ImageURL                string       `json:"image_url" db:"image_url" readxs:"owner,admin"`
	ImageSHA256             string       `json:"-" db:"image_sha256"`
	Status                  ReportStatus `json:"status" db:"status" readxs:"*"`
	VerificationConfidence  float64      `json:"verification_confidence" db:"verification_confidence" readxs:"*"`
	VerificationDescription string       `json:"verification_description" db:"verification_description" readxs:"*"`
	PointsAwarded           int64        `json:"points_awarded" db:"points_awarded" readxs:"*"`
	CreatedAt               time.Time    `json:"created_at" db:"created_at" readxs:"*"`
}

// Verdict is the validated output of the image classification collaborator.
type Verdict struct {
	IsLeakage   bool    `json:"is_leakage"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	// Degraded is set when the verdict came from the keyword heuristic
	// instead of a well-formed JSON payload.
	Degraded bool `json:"degraded"`
}

// ImageFile is an uploaded image as received from the client.
type ImageFile struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Rejection is a policy outcome, not an error: the image was processed but
// did not meet the acceptance threshold.
type Rejection struct {
	Reason  string  `json:"reason"`
	Verdict Verdict `json:"verdict"`
}
