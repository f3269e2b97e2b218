package services

import (
	"context"
	"time"

	"github.com/averill/accounthub/internal/models"
	"github.com/averill/accounthub/internal/repositories"
	pkglogger "github.com/averill/accounthub/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// MockUserStore implements repositories.UserStore for testing
type MockUserStore struct {
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc           func(ctx context.Context, email string) (*models.User, error)
	GetByPhoneFunc           func(ctx context.Context, phone string) (*models.User, error)
	GetByIdentifierFunc      func(ctx context.Context, identifier string) (*models.User, error)
	GetByActivationTokenFunc func(ctx context.Context, token uuid.UUID) (*models.User, error)
	EmailExistsFunc          func(ctx context.Context, email string) (bool, error)
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
}

func (m *MockUserStore) WithTx(tx pgx.Tx) repositories.UserStore { return m }

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	if m.GetByPhoneFunc != nil {
		return m.GetByPhoneFunc(ctx, phone)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByActivationToken(ctx context.Context, token uuid.UUID) (*models.User, error) {
	if m.GetByActivationTokenFunc != nil {
		return m.GetByActivationTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		return m.EmailExistsFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserStore) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) Update(ctx context.Context, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	return user, nil
}

// NewTestUser builds an active, verified user suitable for most tests.
func NewTestUser(username, email string) *models.User {
	return &models.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		EmailVerified: true,
		TermsAccepted: true,
		Active:        true,
		CreatedAt:     time.Now(),
	}
}

// NewTestUserWithPassword builds a test user with a low-cost bcrypt hash of
// the given password.
func NewTestUserWithPassword(username, email, password string) *models.User {
	user := NewTestUser(username, email)
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user.PasswordHash = string(hash)
	return user
}

// MockSessionStore implements repositories.SessionStore for testing
type MockSessionStore struct {
	ReplaceFunc        func(ctx context.Context, userID uuid.UUID, token string) (*models.Session, error)
	GetByTokenFunc     func(ctx context.Context, token string, ttl time.Duration) (*models.Session, error)
	DeleteByUserIDFunc func(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredFunc  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockSessionStore) WithTx(tx pgx.Tx) repositories.SessionStore { return m }

func (m *MockSessionStore) Replace(ctx context.Context, userID uuid.UUID, token string) (*models.Session, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, userID, token)
	}
	return &models.Session{Token: token, UserID: userID, IssuedAt: time.Now()}, nil
}

func (m *MockSessionStore) GetByToken(ctx context.Context, token string, ttl time.Duration) (*models.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token, ttl)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockDeviceTokenStore implements repositories.DeviceTokenStore for testing
type MockDeviceTokenStore struct {
	UpsertFunc          func(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error)
	ReapOtherOwnersFunc func(ctx context.Context, token string, keepUserID uuid.UUID) (int64, error)
	GetByUserIDFunc     func(ctx context.Context, userID uuid.UUID) (*models.DeviceToken, error)
	DeleteStaleFunc     func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockDeviceTokenStore) WithTx(tx pgx.Tx) repositories.DeviceTokenStore { return m }

func (m *MockDeviceTokenStore) Upsert(ctx context.Context, userID uuid.UUID, deviceType, token string) (*models.DeviceToken, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, userID, deviceType, token)
	}
	return &models.DeviceToken{UserID: userID, Token: token, DeviceType: deviceType}, nil
}

func (m *MockDeviceTokenStore) ReapOtherOwners(ctx context.Context, token string, keepUserID uuid.UUID) (int64, error) {
	if m.ReapOtherOwnersFunc != nil {
		return m.ReapOtherOwnersFunc(ctx, token, keepUserID)
	}
	return 0, nil
}

func (m *MockDeviceTokenStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.DeviceToken, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockDeviceTokenStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteStaleFunc != nil {
		return m.DeleteStaleFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockAuditStore implements repositories.AuditStore for testing
type MockAuditStore struct {
	CreateFunc      func(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
	ListByUserFunc  func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditEntry, error)
	ListFunc        func(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
	CountByUserFunc func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (m *MockAuditStore) WithTx(tx pgx.Tx) repositories.AuditStore { return m }

func (m *MockAuditStore) Create(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return entry, nil
}

func (m *MockAuditStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditEntry, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return []*models.AuditEntry{}, nil
}

func (m *MockAuditStore) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.AuditEntry{}, nil
}

func (m *MockAuditStore) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 0, nil
}

// MockTxRunner implements TxRunner by invoking fn with a nil transaction.
// Mock stores ignore the transaction handle, so services under test follow
// the same code path as in production.
type MockTxRunner struct {
	WithTransactionFunc func(ctx context.Context, fn func(pgx.Tx) error) error
}

func (m *MockTxRunner) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// MockAuditor implements Auditor and captures recorded entries and observed
// events for assertions.
type MockAuditor struct {
	RecordFunc func(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error

	Recorded []*models.AuditEntry
	Observed []pkglogger.AuditEvent
}

func (m *MockAuditor) Record(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error {
	m.Recorded = append(m.Recorded, entry)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, tx, entry)
	}
	return nil
}

func (m *MockAuditor) Observe(event pkglogger.AuditEvent) {
	m.Observed = append(m.Observed, event)
}

// MockNotifier implements Notifier and captures dispatched messages.
type MockNotifier struct {
	Emails []string
	Tokens []uuid.UUID
	SMS    []string
	OTPs   []string
}

func (m *MockNotifier) VerificationEmail(name, email string, token uuid.UUID) {
	m.Emails = append(m.Emails, email)
	m.Tokens = append(m.Tokens, token)
}

func (m *MockNotifier) OTPSMS(phone, otp string) {
	m.SMS = append(m.SMS, phone)
	m.OTPs = append(m.OTPs, otp)
}
