package secrets

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

func TestSaraminKeyOrder(t *testing.T) {
	keyring.MockInit()
	t.Setenv(SaraminKeyEnv, "")

	if _, _, err := SaraminKey(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := Set(SaraminAccount, " from-keyring "); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	key, origin, err := SaraminKey("")
	if err != nil || key != "from-keyring" || origin != OriginKeyring {
		t.Fatalf("SaraminKey() = %q, %q, %v", key, origin, err)
	}

	t.Setenv(SaraminKeyEnv, "from-env")
	key, origin, _ = SaraminKey("")
	if key != "from-env" || origin != OriginEnv {
		t.Fatalf("expected env to win over keychain, got %q (%s)", key, origin)
	}

	key, origin, _ = SaraminKey("from-config")
	if key != "from-config" || origin != OriginConfig {
		t.Fatalf("expected config to win, got %q (%s)", key, origin)
	}
}

func TestSetAndDelete(t *testing.T) {
	keyring.MockInit()

	if err := Set("", "x"); err == nil {
		t.Fatalf("expected empty account to be rejected")
	}
	if err := Set(SaraminAccount, "  "); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
	if err := Set(SaraminAccount, "k"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := Delete(SaraminAccount); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := Delete(SaraminAccount); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
