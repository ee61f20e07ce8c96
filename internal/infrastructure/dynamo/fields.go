package dynamo

// DynamoDB attribute and index names used in expressions across the repo.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID                      = "user_id"
	fieldEmail                       = "email"
	fieldPasswordHash                = "password_hash"
	fieldIsVerified                  = "is_verified"
	fieldVerificationToken           = "verification_token"
	fieldVerificationTokenExpiresAt  = "verification_token_expires_at"
	fieldResetPasswordToken          = "reset_password_token"
	fieldResetPasswordTokenExpiresAt = "reset_password_token_expires_at"
	fieldLastLogin                   = "last_login"
	fieldUpdatedAt                   = "updated_at"

	indexEmail              = "email-index"
	indexVerificationToken  = "verification_token-index"
	indexResetPasswordToken = "reset_password_token-index"
)
