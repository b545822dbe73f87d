// Package mirror keeps a denormalised copy of the signed-in profile per device, read eagerly
// when a session opens so the page can render before the profile store answers.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-backend-go/internal/models"
)

// Fixed keys inside a device namespace.
const (
	KeyUserData        = "userData"
	KeyRememberedEmail = "rememberedEmail"
)

// Sealer protects values at rest. *crypto.Sealer satisfies it.
type Sealer interface {
	Seal(plain []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// Mirror reads and writes the mirror entries of one device.
type Mirror struct {
	store     Store
	namespace string
	sealer    Sealer
	ttl       time.Duration
	logger    *zap.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithSealer encrypts stored values.
func WithSealer(s Sealer) Option { return func(m *Mirror) { m.sealer = s } }

// WithTTL expires entries that were not rewritten for ttl.
func WithTTL(ttl time.Duration) Option { return func(m *Mirror) { m.ttl = ttl } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Mirror) { m.logger = l } }

// New creates a Mirror over store for the given device id.
func New(store Store, deviceID string, opts ...Option) *Mirror {
	m := &Mirror{store: store, namespace: "mirror:" + deviceID + ":", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) key(name string) string { return m.namespace + name }

// Save stores record under the fixed user key.
func (m *Mirror) Save(ctx context.Context, record *models.MirrorRecord) error {
	if record == nil {
		return errors.New("mirror: record cannot be nil")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	value, err := m.encode(raw)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.key(KeyUserData), value, m.ttl)
}

// Load returns the mirrored record. A corrupt entry is reported as absent and removed;
// backend failures are logged and also reported as absent.
func (m *Mirror) Load(ctx context.Context) (*models.MirrorRecord, bool) {
	key := m.key(KeyUserData)
	value, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("mirror read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	record, err := m.decode(value)
	if err != nil {
		m.logger.Warn("discarding malformed mirror entry", zap.String("key", key), zap.Error(err))
		if delErr := m.store.Delete(ctx, key); delErr != nil {
			m.logger.Warn("failed to delete malformed mirror entry", zap.String("key", key), zap.Error(delErr))
		}
		return nil, false
	}
	return record, true
}

// Clear removes the user entry.
func (m *Mirror) Clear(ctx context.Context) error {
	return m.store.Delete(ctx, m.key(KeyUserData))
}

// RememberEmail stores the address the login form should prefill.
func (m *Mirror) RememberEmail(ctx context.Context, email string) error {
	return m.store.Set(ctx, m.key(KeyRememberedEmail), email, 0)
}

// RememberedEmail returns the prefilled login address, or "".
func (m *Mirror) RememberedEmail(ctx context.Context) string {
	value, ok, err := m.store.Get(ctx, m.key(KeyRememberedEmail))
	if err != nil || !ok {
		return ""
	}
	return value
}

// ForgetEmail removes the remembered address.
func (m *Mirror) ForgetEmail(ctx context.Context) error {
	return m.store.Delete(ctx, m.key(KeyRememberedEmail))
}

var errEmptyRecord = errors.New("mirror entry has no uid")

func (m *Mirror) encode(raw []byte) (string, error) {
	if m.sealer == nil {
		return string(raw), nil
	}
	return m.sealer.Seal(raw)
}

func (m *Mirror) decode(value string) (*models.MirrorRecord, error) {
	raw := []byte(value)
	if m.sealer != nil {
		opened, err := m.sealer.Open(value)
		if err != nil {
			return nil, err
		}
		raw = opened
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, errEmptyRecord
	}
	var record models.MirrorRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	if record.UID == "" {
		return nil, errEmptyRecord
	}
	return &record, nil
}
