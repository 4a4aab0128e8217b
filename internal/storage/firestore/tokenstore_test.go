//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-carepush-service/internal/storage/firestore"
)

func setupSuite(t *testing.T) (context.Context, *firestore.Client, *fs.FirestoreStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-token-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := fs.NewFirestoreStore(client, "users", "fcmToken")
	return ctx, client, store
}

func TestTokenStore_Integration(t *testing.T) {
	ctx, client, store := setupSuite(t)

	t.Run("Unknown user has no token", func(t *testing.T) {
		token, err := store.FetchToken(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("User record without the token field", func(t *testing.T) {
		_, err := client.Collection("users").Doc("no-token").Set(ctx, map[string]interface{}{"displayName": "Ana"})
		require.NoError(t, err)

		token, err := store.FetchToken(ctx, "no-token")
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("Save, fetch and clear lifecycle", func(t *testing.T) {
		_, err := client.Collection("users").Doc("patient-1").Set(ctx, map[string]interface{}{"displayName": "Rui"})
		require.NoError(t, err)

		require.NoError(t, store.SaveToken(ctx, "patient-1", "T1"))

		token, err := store.FetchToken(ctx, "patient-1")
		require.NoError(t, err)
		assert.Equal(t, "T1", token)

		// Other fields on the user record survive the merge.
		snap, err := client.Collection("users").Doc("patient-1").Get(ctx)
		require.NoError(t, err)
		name, err := snap.DataAt("displayName")
		require.NoError(t, err)
		assert.Equal(t, "Rui", name)

		require.NoError(t, store.ClearToken(ctx, "patient-1"))

		token, err = store.FetchToken(ctx, "patient-1")
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("Clearing a missing user is a no-op", func(t *testing.T) {
		assert.NoError(t, store.ClearToken(ctx, "ghost"))
	})
}
