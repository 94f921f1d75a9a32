package flagutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/petr-muller/taiga-query/internal/config"
	"github.com/petr-muller/taiga-query/internal/taiga"
)

const (
	tokenFileName string = "taiga-token"

	defaultEndpoint = "https://api.taiga.io"
)

// TaigaOptions bundles the flags needed to construct a Taiga API client.
type TaigaOptions struct {
	endpoint  string
	tokenFile string
}

// AddPFlags injects Taiga options into the given pflag.FlagSet
func (o *TaigaOptions) AddPFlags(fs *pflag.FlagSet) {
	defaultTokenPath := filepath.Join(config.MustConfigDir(), tokenFileName)

	fs.StringVar(&o.endpoint, "taiga.endpoint", defaultEndpoint, "Taiga instance URL")
	fs.StringVar(&o.tokenFile, "taiga.auth-token-file", defaultTokenPath, "Path to the file containing the Taiga auth token")
}

// Validate checks that the options can produce a working client.
func (o *TaigaOptions) Validate() error {
	if o.endpoint == "" {
		return fmt.Errorf("--taiga.endpoint must not be empty")
	}
	if o.tokenFile == "" {
		return fmt.Errorf("--taiga.auth-token-file must not be empty")
	}
	return nil
}

// Client creates a Taiga API client from the options, reading the auth
// token from the configured token file.
func (o *TaigaOptions) Client() (*taiga.Client, error) {
	raw, err := os.ReadFile(o.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read auth token file %s: %w", o.tokenFile, err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return nil, fmt.Errorf("auth token file %s is empty", o.tokenFile)
	}

	return taiga.NewClient(o.endpoint, token), nil
}
