// Package secrets resolves API credentials from config, the environment
// or the OS keychain.
package secrets

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "jobbridge"
	SaraminAccount = "saramin"
	SaraminKeyEnv  = "JOBBRIDGE_SARAMIN_API_KEY"
)

var ErrNotFound = errors.New("secret not found")

// Origin names where a resolved secret came from.
type Origin string

const (
	OriginConfig  Origin = "config"
	OriginEnv     Origin = "env"
	OriginKeyring Origin = "keyring"
)

// SaraminKey returns the first non-empty key from the config value, the
// environment and the keychain, in that order.
func SaraminKey(configValue string) (string, Origin, error) {
	if key := strings.TrimSpace(configValue); key != "" {
		return key, OriginConfig, nil
	}
	if key := strings.TrimSpace(os.Getenv(SaraminKeyEnv)); key != "" {
		return key, OriginEnv, nil
	}

	key, err := keyring.Get(KeyringService, SaraminAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", "", errors.WithHintf(ErrNotFound,
				"set %s or run `jobingest secret set saramin`", SaraminKeyEnv)
		}
		return "", "", errors.Wrap(err, "read keychain")
	}
	if strings.TrimSpace(key) == "" {
		return "", "", ErrNotFound
	}
	return strings.TrimSpace(key), OriginKeyring, nil
}

// Set stores value for account in the keychain.
func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return errors.Wrap(keyring.Set(KeyringService, account, strings.TrimSpace(value)), "write keychain")
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := keyring.Delete(KeyringService, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.Wrapf(ErrNotFound, "%s", account)
		}
		return errors.Wrap(err, "delete from keychain")
	}
	return nil
}
