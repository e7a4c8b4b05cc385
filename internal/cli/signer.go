package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pendergraft/contraship/internal/chain"
	"github.com/pendergraft/contraship/internal/config"
)

// keyPrompt reads a private key from the user; nil when stdin is not a terminal
var keyPrompt = promptTerminal

// loadSigner builds the deploying signer from configuration, prompting for the key when none is set
func loadSigner(cfg *config.Config) (*chain.Signer, error) {
	key := cfg.Signer.PrivateKey
	if key == "" {
		prompted, err := keyPrompt(fmt.Sprintf("Private key for %s: ", cfg.Signer.Address))
		if err != nil {
			return nil, err
		}
		key = prompted
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no private key (set CONTRASHIP_PRIVATE_KEY or signer.private_key)", config.ErrInvalidConfig)
	}
	return chain.NewSigner(key, cfg.Signer.Address)
}

// promptTerminal reads a line without echo. It returns "" when stdin is not a terminal.
func promptTerminal(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, prompt)
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading private key: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}

// maskKey hides all but the edges of a secret
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
