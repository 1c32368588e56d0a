package dto

// ResolveFalsePositivesRequest is the optional body of the sweep endpoint
type ResolveFalsePositivesRequest struct {
	BatchSize int `json:"batchSize" binding:"omitempty,min=1,max=5000"`
}

// RevokeTokenRequest revokes one token by id or every token of a subject
// issued so far. Exactly one field must be set.
type RevokeTokenRequest struct {
	JTI     string `json:"jti" binding:"max=64"`
	Subject string `json:"subject" binding:"max=128"`
}

// RevokeTokenResponse echoes what was revoked
type RevokeTokenResponse struct {
	JTI     string `json:"jti,omitempty"`
	Subject string `json:"subject,omitempty"`
	Revoked bool   `json:"revoked"`
}
