package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements dispatch.TokenRegistry over the user documents
// owned by the booking app: {collection}/{userID} with the device token in tokenField.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	tokenField string
}

func NewFirestoreStore(client *firestore.Client, collection, tokenField string) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: collection,
		tokenField: tokenField,
	}
}

// FetchToken is a single point read. A missing document, a missing field or a
// non-string field all yield "".
func (s *FirestoreStore) FetchToken(ctx context.Context, userID string) (string, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", fmt.Errorf("firestore read of user %s failed: %w", userID, err)
	}

	val, err := snap.DataAt(s.tokenField)
	if err != nil {
		// Field not present on the record.
		return "", nil
	}
	token, _ := val.(string)
	return token, nil
}

// SaveToken merges the token into the user document, leaving other fields alone.
func (s *FirestoreStore) SaveToken(ctx context.Context, userID, token string) error {
	_, err := s.userRef(userID).Set(ctx, map[string]interface{}{
		s.tokenField:                token,
		s.tokenField + "UpdatedAt": time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("firestore write of user %s failed: %w", userID, err)
	}
	return nil
}

// ClearToken removes the token field. Clearing a missing user is not an error.
func (s *FirestoreStore) ClearToken(ctx context.Context, userID string) error {
	_, err := s.userRef(userID).Update(ctx, []firestore.Update{
		{Path: s.tokenField, Value: firestore.Delete},
		{Path: s.tokenField + "UpdatedAt", Value: time.Now()},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore clear of user %s failed: %w", userID, err)
	}
	return nil
}

// userRef: {collection}/{userID}
func (s *FirestoreStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(userID)
}
