// Package dbtest provides in-memory repositories for handler and service tests.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/models"
)

// Users is an in-memory db.UserRepository. The exported hooks are read on every call and
// must be set before the repository is shared.
type Users struct {
	// Gate, when set, blocks GetByID until it is closed.
	Gate chan struct{}
	// GetErr and TouchErr fail every GetByID and TouchLastLogin call.
	GetErr   error
	TouchErr error
	// OnCreate runs before a document is written; a non-nil result fails the call.
	OnCreate func(profile *models.UserProfile) error

	mu      sync.Mutex
	docs    map[string]*models.UserProfile
	creates int
	touches int
	updates []map[string]interface{}
}

func NewUsers() *Users { return &Users{docs: make(map[string]*models.UserProfile)} }

// Put stores p as is.
func (r *Users) Put(p *models.UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[p.UID] = p.Clone()
}

// Doc returns a copy of the stored profile, or nil.
func (r *Users) Doc(uid string) *models.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[uid].Clone()
}

// Len returns the number of stored profiles.
func (r *Users) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// Creates counts successful Create calls.
func (r *Users) Creates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

// Touches counts successful TouchLastLogin calls.
func (r *Users) Touches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touches
}

// Updates returns the field maps passed to Update, oldest first.
func (r *Users) Updates() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]interface{}(nil), r.updates...)
}

func (r *Users) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if r.Gate != nil {
		<-r.Gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *Users) Create(ctx context.Context, profile *models.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.OnCreate != nil {
		if err := r.OnCreate(profile); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[profile.UID]; ok {
		return db.ErrAlreadyExists
	}
	r.creates++
	r.docs[profile.UID] = profile.Clone()
	return nil
}

func (r *Users) Update(_ context.Context, userID string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[userID]
	if !ok {
		return db.ErrNotFound
	}
	r.updates = append(r.updates, fields)
	for k, v := range fields {
		switch k {
		case "displayName":
			p.DisplayName, _ = v.(string)
		case "photoURL":
			p.PhotoURL, _ = v.(string)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]interface{})
			}
			p.Extra[k] = v
		}
	}
	return nil
}

func (r *Users) TouchLastLogin(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.TouchErr != nil {
		return r.TouchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[userID]
	if !ok {
		return db.ErrNotFound
	}
	r.touches++
	p.LastLogin = time.Now()
	return nil
}

func (r *Users) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.docs {
		if p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// Testimonials is an in-memory db.TestimonialRepository.
type Testimonials struct {
	// Err fails every read.
	Err error

	mu      sync.Mutex
	docs    map[string]*models.Testimonial
	nextID  int
	lists   int
	deletes int
}

func NewTestimonials() *Testimonials {
	return &Testimonials{docs: make(map[string]*models.Testimonial)}
}

// Add stores a "script" testimonial written by userID at the given time and returns its id.
func (r *Testimonials) Add(userID string, rating float64, text string, at time.Time) string {
	id, _ := r.Create(context.Background(), &models.Testimonial{
		UserID: userID, Name: "Customer", Rating: rating, Text: text, ProductType: "script", CreatedAt: at,
	})
	return id
}

// ListCalls counts ListByUser calls.
func (r *Testimonials) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

// Deletes counts Delete calls.
func (r *Testimonials) Deletes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletes
}

func (r *Testimonials) ListByUser(_ context.Context, userID string) ([]*models.Testimonial, error) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return r.query(func(t *models.Testimonial) bool { return t.UserID == userID }, 0), nil
}

func (r *Testimonials) ListRecent(_ context.Context, limit int) ([]*models.Testimonial, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.query(func(*models.Testimonial) bool { return true }, limit), nil
}

func (r *Testimonials) query(keep func(*models.Testimonial) bool, limit int) []*models.Testimonial {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Testimonial
	for _, t := range r.docs {
		if keep(t) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Testimonials) GetByID(_ context.Context, id string) (*models.Testimonial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.docs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *Testimonials) Create(_ context.Context, t *models.Testimonial) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := *t
	c.ID = fmt.Sprintf("testimonial-%d", r.nextID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.docs[c.ID] = &c
	return c.ID, nil
}

func (r *Testimonials) CreateBatch(ctx context.Context, ts []*models.Testimonial) ([]string, error) {
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		id, err := r.Create(ctx, t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Testimonials) Update(_ context.Context, id string, upd models.TestimonialUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.docs[id]
	if !ok {
		return db.ErrNotFound
	}
	if upd.Text != nil {
		t.Text = *upd.Text
	}
	if upd.Rating != nil {
		t.Rating = *upd.Rating
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (r *Testimonials) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.docs, id)
	return nil
}

func (r *Testimonials) CountByUser(ctx context.Context, userID string) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return len(r.query(func(t *models.Testimonial) bool { return t.UserID == userID }, 0)), nil
}

// Orders is an in-memory db.OrderRepository.
type Orders struct {
	// Err fails every count.
	Err error

	mu     sync.Mutex
	orders []models.Order
}

func NewOrders() *Orders { return &Orders{} }

// Add records an order.
func (r *Orders) Add(o models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func (r *Orders) CountCompletedByUser(_ context.Context, userID string) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.UserID == userID && o.Status == models.OrderStatusCompleted {
			n++
		}
	}
	return n, nil
}

var (
	_ db.UserRepository        = (*Users)(nil)
	_ db.TestimonialRepository = (*Testimonials)(nil)
	_ db.OrderRepository       = (*Orders)(nil)
)
