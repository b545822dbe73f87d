package models

import "time"

// Testimonial is a customer review stored in the "testimonials" collection.
type Testimonial struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rating      float64   `json:"rating"`
	Text        string    `json:"text"`
	ProductType string    `json:"productType,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	CreatedAt   time.Time `json:"date"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	UserID      string    `json:"userId,omitempty"`
}

// TestimonialUpdate is an edit from the profile page. Nil pointers leave the field untouched.
type TestimonialUpdate struct {
	Text   *string  `json:"text,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// Order is the subset of an order document needed to count purchases.
type Order struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// OrderStatusCompleted marks orders that count towards a user's purchases.
const OrderStatusCompleted = "completed"
