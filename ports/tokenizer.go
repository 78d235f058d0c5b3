package ports

import "github.com/ggurbet/onchainsurveys/core"

// Tokenizer converts between session claims and tokens
type Tokenizer interface {
	ClaimsToToken(claims *core.AuthClaims) (string, error)
	TokenToClaims(token string) (*core.AuthClaims, error)
}
