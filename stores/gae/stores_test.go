//go:build !wasm

package gae_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/stores/gae"
	"github.com/panyam/quickauth/stores/storetest"
)

func TestEntityMapping(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &qa.Account{
		ID:           "01JNQ6W8ZK3E2V4M7R9T0YBXCD",
		Username:     "alice",
		Email:        "Alice@Example.com",
		Provider:     qa.ProviderLocal,
		PasswordHash: "hash",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	key := datastore.NameKey(gae.KindAccount, a.ID, nil)

	e := gae.AccountToEntity(a, key)
	assert.Equal(t, "alice@example.com", e.EmailLower)

	got := e.ToAccount()
	assert.Equal(t, a, got)
}

// Runs against the Datastore emulator:
//
//	gcloud beta emulators datastore start --no-store-on-disk
//	$(gcloud beta emulators datastore env-init)
func TestAccountStoreEmulator(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := datastore.NewClient(ctx, "quickauth-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	run := time.Now().UnixNano()
	n := 0
	storetest.Run(t, func(t *testing.T) qa.AccountStore {
		n++
		return gae.NewAccountStore(client, fmt.Sprintf("test-%d-%d", run, n))
	})
}
