package domain

import "time"

// Purpose partitions verification codes: a registration code cannot be
// redeemed for a password reset and vice versa.
type Purpose string

const (
	PurposeRegister      Purpose = "REGISTER"
	PurposeResetPassword Purpose = "RESET_PASSWORD"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeRegister || p == PurposeResetPassword
}

// VerificationCode is a short-lived numeric credential issued to a subject
// for a single purpose.
// PK: subject_purpose — exactly one row per (subject, purpose), so a fresh
// issue replaces its predecessor and two active codes can never coexist even
// under concurrent writers. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
// VerificationID identifies the individual issuance for exactly-once consumption.
type VerificationCode struct {
	VerificationID string  `json:"verification_id" dynamodbav:"verification_id"`
	Subject        string  `json:"subject" dynamodbav:"subject"`
	SubjectPurpose string  `json:"-" dynamodbav:"subject_purpose"` // PK: "<subject>#<purpose>"
	Purpose        Purpose `json:"purpose" dynamodbav:"purpose"`
	Code           string  `json:"code" dynamodbav:"code"`
	CreatedAt      int64   `json:"created_at" dynamodbav:"created_at"` // Unix nanoseconds
	ExpiresAt      int64   `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Consumed       bool    `json:"consumed" dynamodbav:"consumed"`
}

// SubjectPurposeKey builds the composite GSI hash key for a (subject, purpose) pair.
func SubjectPurposeKey(subject string, purpose Purpose) string {
	return subject + "#" + string(purpose)
}

// CreatedTime converts the persisted creation timestamp back to time.Time.
func (v *VerificationCode) CreatedTime() time.Time {
	return time.Unix(0, v.CreatedAt)
}

// Expired reports whether the code is past its expiry at the given instant.
func (v *VerificationCode) Expired(now time.Time) bool {
	return v.ExpiresAt <= now.Unix()
}
