package cmd

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jobbridge/ingest/internal/secrets"
)

type SecretCmd struct {
	Set    SecretSetCmd    `cmd:"" help:"Store an API key in the OS keychain."`
	Delete SecretDeleteCmd `cmd:"" help:"Remove an API key from the OS keychain."`
}

type SecretSetCmd struct {
	Account string `arg:"" optional:"" help:"Keychain account." default:"saramin"`
	Value   string `help:"Key value; read from stdin when empty."`
}

type SecretDeleteCmd struct {
	Account string `arg:"" optional:"" help:"Keychain account." default:"saramin"`
}

func (s *SecretSetCmd) Run(ctx *Context) error {
	value := s.Value
	if strings.TrimSpace(value) == "" {
		read, err := readSecret(os.Stdin)
		if err != nil {
			return err
		}
		value = read
	}
	if err := secrets.Set(s.Account, value); err != nil {
		return err
	}
	ctx.UI.Successf("Stored %s key in keychain service %q", s.Account, secrets.KeyringService)
	return nil
}

func (s *SecretDeleteCmd) Run(ctx *Context) error {
	if err := secrets.Delete(s.Account); err != nil {
		return err
	}
	ctx.UI.Successf("Removed %s key", s.Account)
	return nil
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read secret")
	}
	return strings.TrimSpace(line), nil
}
