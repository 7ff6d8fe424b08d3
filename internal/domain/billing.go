package domain

// BillingAccount is the hash-authenticated payload the billing backend
// returns from user creation and key rotation. Key is the encrypted API key,
// KeySalt the salt bound to it, Salt the per-handshake nonce, and Hash the
// HMAC over the fixed field order key+key_salt+timestamp+user_id+salt.
// Callers must verify Hash before trusting any other field.
type BillingAccount struct {
	UserID    int64  `json:"user_id"`
	PartnerID int64  `json:"partner_id,omitempty"`
	Key       string `json:"key"`
	KeySalt   string `json:"key_salt"`
	Salt      string `json:"salt"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}
