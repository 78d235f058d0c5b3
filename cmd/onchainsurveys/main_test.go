package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/config"
)

func testLoader(t *testing.T) (loader, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.Server{TokenTTL: 1},
		Client: config.Client{
			AuthURL:     "http://127.0.0.1:1",
			SessionFile: filepath.Join(dir, "session.json"),
			KeyFile:     filepath.Join(dir, "wallet.key"),
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return func() (*config.Config, *slog.Logger, error) { return cfg, logger, nil }, cfg
}

func TestPromptApprover(t *testing.T) {
	var out bytes.Buffer
	approve := promptApprover(strings.NewReader("y\nno\n"), &out)

	ok, err := approve(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), `"a@b.com"`)

	ok, err = approve(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = approve(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, io.EOF)
}

func TestKeygenAndStatus(t *testing.T) {
	load, cfg := testLoader(t)

	var out bytes.Buffer
	keygen := keygenCmd(load)
	keygen.SetOut(&out)
	keygen.SetArgs([]string{"--algorithm", "secp256k1"})
	require.NoError(t, keygen.Execute())

	kp, err := casper.LoadKeyFile(cfg.Client.KeyFile)
	require.NoError(t, err)
	assert.Equal(t, casper.Secp256k1, kp.Algorithm())
	assert.Contains(t, out.String(), kp.PublicKeyHex())

	again := keygenCmd(load)
	again.SetOut(io.Discard)
	again.SetArgs([]string{})
	assert.ErrorContains(t, again.Execute(), "already exists")

	out.Reset()
	status := statusCmd(load)
	status.SetOut(&out)
	status.SetArgs([]string{})
	require.NoError(t, status.Execute())
	assert.Equal(t, "Not signed in\n", out.String())
}

func TestKeygenJWT(t *testing.T) {
	load, _ := testLoader(t)

	var out bytes.Buffer
	cmd := keygenCmd(load)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--jwt"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "BEGIN EC PRIVATE KEY")
}
