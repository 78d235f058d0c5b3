package core

import "time"

// WalletConnectionState is the last connection state reported by the wallet extension.
type WalletConnectionState struct {
	IsConnected  bool   `json:"isConnected"`
	ActiveKeyHex string `json:"activeKey,omitempty"`
}

// Session is the locally persisted proof of authentication.
// All fields are written and cleared together.
type Session struct {
	Token              string // Opaque token issued by the auth boundary
	UserID             string // Identity resolved by the auth boundary
	ActivePublicKeyHex string // Wallet key the session was issued for
	AlreadyRegistered  bool   // Whether the key was known before this session
	ProvidedSignature  string // Hex signature of the last signed challenge, empty for returning-session logins
}

// Complete reports whether every mandatory field is populated.
func (s Session) Complete() bool {
	return s.Token != "" && s.UserID != "" && s.ActivePublicKeyHex != ""
}

// SignedChallenge is the outcome of one sign attempt.
type SignedChallenge struct {
	Message        string
	PublicKeyHex   string
	SignatureBytes []byte
	Cancelled      bool
}

// User is an identity registered with the auth boundary, keyed by public key.
type User struct {
	ID          string    `json:"id" bson:"_id"`
	PublicKey   string    `json:"public_key" bson:"public_key"`
	AccountHash string    `json:"account_hash" bson:"account_hash"`
	Email       string    `json:"email" bson:"email"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// AuthClaims is the server-side view of an issued session token.
type AuthClaims struct {
	TokenID   string    // Unique token identifier, used for revocation
	UserID    string    // Subject of the token
	PublicKey string    // Wallet key the token was issued for
	IssuedAt  time.Time // When the token was created
	ExpiresAt time.Time // When the token expires
}

// RegistrationResult is returned by the auth boundary for a register call.
type RegistrationResult struct {
	Success           bool   `json:"success"`
	UserID            string `json:"userId,omitempty"`
	Token             string `json:"token,omitempty"`
	AlreadyRegistered bool   `json:"alreadyRegistered"`
	Message           string `json:"message,omitempty"`
}

// LoginResult is returned by the auth boundary for a known-key login.
type LoginResult struct {
	Success           bool   `json:"success"`
	UserID            string `json:"userId,omitempty"`
	Token             string `json:"token,omitempty"`
	AlreadyRegistered bool   `json:"alreadyRegistered"`
	Message           string `json:"message,omitempty"`
}
