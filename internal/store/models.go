package store

import (
	"time"

	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsAnonymous           bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Submission is one stored questionnaire record. At most one submission per
// owner is treated as canonical in a session; when duplicates exist the most
// recent by timestamp wins.
type Submission struct {
	ID            string
	OwnerID       string
	OwnerEmail    string
	OwnerName     string
	Fields        form.Snapshot
	Confirmations confirm.Set
	// ServerTS is assigned by the database on every write; LastModifiedISO
	// is the client-supplied wall-clock stamp used as a tie-break so that
	// ordering survives provider clock skew.
	ServerTS        time.Time
	LastModifiedISO string
}

type SubmissionStats struct {
	Total           int
	ModifiedLast24h int
}
