package db

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	"storefront-backend-go/internal/models"
)

const ordersCollection = "orders"

type firestoreOrderRepository struct {
	client *firestore.Client
}

// NewFirestoreOrderRepository creates a new instance of firestoreOrderRepository.
func NewFirestoreOrderRepository(client *firestore.Client) OrderRepository {
	return &firestoreOrderRepository{client: client}
}

func (r *firestoreOrderRepository) CountCompletedByUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("userID cannot be empty for CountCompletedByUser operation")
	}
	iter := r.client.Collection(ordersCollection).
		Where("userId", "==", userID).
		Where("status", "==", models.OrderStatusCompleted).
		Documents(ctx)
	return countDocuments(iter)
}
