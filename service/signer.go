package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// DefaultSignTimeout bounds how long a sign request may wait for the user.
const DefaultSignTimeout = 2 * time.Minute

var errEmptySignature = errors.New("wallet returned no signature")

// ChallengeSigner requests signatures from the wallet.
type ChallengeSigner struct {
	wallet  ports.WalletProvider
	timeout time.Duration
	logger  *slog.Logger
}

// NewChallengeSigner creates a signer. A non-positive timeout disables the deadline.
func NewChallengeSigner(wallet ports.WalletProvider, timeout time.Duration, logger *slog.Logger) *ChallengeSigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeSigner{
		wallet:  wallet,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "challenge_signer")),
	}
}

type signOutcome struct {
	res ports.SignResult
	err error
}

// RequestSignature asks the wallet to sign message with publicKeyHex.
// A user rejection is a SignedChallenge with Cancelled set and a nil error.
// Wallet failures, including the deadline, are *core.WalletCommunicationError.
func (s *ChallengeSigner) RequestSignature(ctx context.Context, message, publicKeyHex string) (core.SignedChallenge, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// The wallet may ignore ctx, so wait on both.
	done := make(chan signOutcome, 1)
	go func() {
		res, err := s.wallet.SignMessage(ctx, message, publicKeyHex)
		done <- signOutcome{res: res, err: err}
	}()

	var out signOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = signOutcome{err: ctx.Err()}
	}

	if out.err != nil {
		s.logger.Warn("sign request failed", slog.String("key", core.ShortKey(publicKeyHex)), slog.Any("error", out.err))
		return core.SignedChallenge{}, &core.WalletCommunicationError{Op: "signMessage", Err: out.err}
	}

	if out.res.Cancelled {
		s.logger.Info("sign request cancelled by user", slog.String("key", core.ShortKey(publicKeyHex)))
		return core.SignedChallenge{
			Message:      message,
			PublicKeyHex: publicKeyHex,
			Cancelled:    true,
		}, nil
	}

	if len(out.res.Signature) == 0 {
		return core.SignedChallenge{}, &core.WalletCommunicationError{Op: "signMessage", Err: errEmptySignature}
	}

	return core.SignedChallenge{
		Message:        message,
		PublicKeyHex:   publicKeyHex,
		SignatureBytes: out.res.Signature,
	}, nil
}
