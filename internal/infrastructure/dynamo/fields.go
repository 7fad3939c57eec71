package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldSubjectPurpose = "subject_purpose"
	fieldConsumed       = "consumed"
	fieldStatus         = "status"
	fieldConfirmedAt    = "confirmed_at"
	fieldHistory        = "history"
	fieldCreatedAt      = "created_at"
	fieldExpiresAt      = "expires_at"
)
