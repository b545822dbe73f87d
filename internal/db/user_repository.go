package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront-backend-go/internal/models"
)

const usersCollection = "users"

// Document field names of a profile.
const (
	fieldEmail         = "email"
	fieldDisplayName   = "displayName"
	fieldPhotoURL      = "photoURL"
	fieldRole          = "role"
	fieldStatus        = "status"
	fieldEmailVerified = "emailVerified"
	fieldProvider      = "provider"
	fieldBalance       = "balance"
	fieldPurchases     = "purchases"
	fieldCreatedAt     = "createdAt"
	fieldLastLogin     = "lastLogin"
)

var knownProfileFields = map[string]struct{}{
	fieldEmail: {}, fieldDisplayName: {}, fieldPhotoURL: {}, fieldRole: {}, fieldStatus: {},
	fieldEmailVerified: {}, fieldProvider: {}, fieldBalance: {}, fieldPurchases: {},
	fieldCreatedAt: {}, fieldLastLogin: {},
}

// IsProfileField reports whether name is one of the typed profile fields rather than an extra.
func IsProfileField(name string) bool {
	_, ok := knownProfileFields[name]
	return ok
}

// firestoreUserRepository implements UserRepository using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return profileFromDocument(snap.Ref.ID, snap.Data()), nil
}

// Create uses Doc.Create rather than Set so a concurrent first sign-in cannot overwrite
// a document another request already created.
func (r *firestoreUserRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil || profile.UID == "" {
		return errors.New("profile UID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(profile.UID).Create(ctx, profileToDocument(profile))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user with ID '%s' already exists: %w", profile.UID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user with ID '%s': %w", profile.UID, err)
	}
	return nil
}

func (r *firestoreUserRepository) Update(ctx context.Context, userID string, fields map[string]interface{}) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Update operation")
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, fieldUpdates(fields))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update user with ID '%s': %w", userID, err)
	}
	return nil
}

func (r *firestoreUserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldLastLogin: firestore.ServerTimestamp})
}

func (r *firestoreUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	iter := r.client.Collection(usersCollection).Where(fieldEmail, "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query users by email: %w", err)
	}
	return true, nil
}

// fieldUpdates turns a field map into Firestore updates in a stable order.
func fieldUpdates(fields map[string]interface{}) []firestore.Update {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	return updates
}

// profileToDocument builds the document written on creation. Extras never shadow known fields.
func profileToDocument(p *models.UserProfile) map[string]interface{} {
	doc := make(map[string]interface{}, len(knownProfileFields)+len(p.Extra))
	for k, v := range p.Extra {
		if _, known := knownProfileFields[k]; !known {
			doc[k] = v
		}
	}
	doc[fieldEmail] = p.Email
	doc[fieldDisplayName] = p.DisplayName
	doc[fieldPhotoURL] = p.PhotoURL
	doc[fieldRole] = p.Role
	doc[fieldStatus] = p.Status
	doc[fieldEmailVerified] = p.EmailVerified
	doc[fieldBalance] = p.Balance
	doc[fieldPurchases] = p.Purchases
	doc[fieldCreatedAt] = firestore.ServerTimestamp
	doc[fieldLastLogin] = firestore.ServerTimestamp
	if p.Provider != "" {
		doc[fieldProvider] = p.Provider
	}
	return doc
}

// profileFromDocument decodes a profile leniently: documents written by older page scripts
// carry differing field sets and number types.
func profileFromDocument(id string, data map[string]interface{}) *models.UserProfile {
	p := &models.UserProfile{
		UID:           id,
		Email:         asString(data[fieldEmail]),
		DisplayName:   asString(data[fieldDisplayName]),
		PhotoURL:      asString(data[fieldPhotoURL]),
		Role:          asString(data[fieldRole]),
		Status:        asString(data[fieldStatus]),
		EmailVerified: asBool(data[fieldEmailVerified]),
		Provider:      asString(data[fieldProvider]),
		Balance:       asFloat(data[fieldBalance]),
		Purchases:     int64(asFloat(data[fieldPurchases])),
		CreatedAt:     asTime(data[fieldCreatedAt]),
		LastLogin:     asTime(data[fieldLastLogin]),
	}
	for k, v := range data {
		if _, known := knownProfileFields[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]interface{})
		}
		p.Extra[k] = v
	}
	return p
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func asTime(v interface{}) time.Time {
	t, _ := v.(time.Time)
	return t
}
