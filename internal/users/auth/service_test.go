// Copyright (c) 2026 Stokria. All rights reserved.

package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokria/stokria/internal/platform/apperr"
	"github.com/stokria/stokria/internal/platform/audit"
	"github.com/stokria/stokria/internal/platform/sec"
	"github.com/stokria/stokria/internal/users/auth"
)

// # In-Memory Fakes

type fakeUserRepository struct {
	users   []*auth.User
	findErr error // injected infrastructure fault for lookups
}

func (repo *fakeUserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	if repo.findErr != nil {
		return nil, repo.findErr
	}
	for _, user := range repo.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, user := range repo.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepository) Create(_ context.Context, user *auth.User) error {
	repo.users = append(repo.users, user)
	return nil
}

type fakeCompanyRepository struct {
	companies []*auth.Company
}

func (repo *fakeCompanyRepository) Create(_ context.Context, company *auth.Company) error {
	repo.companies = append(repo.companies, company)
	return nil
}

func (repo *fakeCompanyRepository) FindByID(_ context.Context, id string) (*auth.Company, error) {
	for _, company := range repo.companies {
		if company.ID == id {
			return company, nil
		}
	}
	return nil, apperr.NotFound("Company")
}

type fakeMembershipRepository struct {
	memberships []auth.Membership
}

func (repo *fakeMembershipRepository) Create(_ context.Context, membership *auth.Membership) error {
	repo.memberships = append(repo.memberships, *membership)
	return nil
}

func (repo *fakeMembershipRepository) FindByUser(_ context.Context, userID string) ([]auth.Membership, error) {
	var out []auth.Membership
	for _, membership := range repo.memberships {
		if membership.UserID == userID {
			out = append(out, membership)
		}
	}
	return out, nil
}

func (repo *fakeMembershipRepository) FindByUserAndCompany(_ context.Context, userID, companyID string) (*auth.Membership, error) {
	for _, membership := range repo.memberships {
		if membership.UserID == userID && membership.CompanyID == companyID {
			found := membership
			return &found, nil
		}
	}
	return nil, apperr.NotFound("Membership")
}

type fakeRefreshStore struct {
	mu     sync.Mutex
	grants map[string]auth.RefreshGrant
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{grants: make(map[string]auth.RefreshGrant)}
}

func (store *fakeRefreshStore) Save(_ context.Context, tokenHash string, grant auth.RefreshGrant, _ time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.grants[tokenHash] = grant
	return nil
}

func (store *fakeRefreshStore) Consume(_ context.Context, tokenHash string) (*auth.RefreshGrant, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	grant, ok := store.grants[tokenHash]
	if !ok {
		return nil, auth.ErrRefreshNotFound
	}
	delete(store.grants, tokenHash)
	return &grant, nil
}

func (store *fakeRefreshStore) Revoke(_ context.Context, tokenHash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.grants, tokenHash)
	return nil
}

// stubIssuer mints predictable tokens so tests can assert what was bound.
type stubIssuer struct{}

func (stubIssuer) IssueAccessToken(userID, _ string, companyID string, role sec.Role) (string, error) {
	return "access:" + userID + ":" + companyID + ":" + string(role), nil
}

func (stubIssuer) AccessTokenTTL() time.Duration { return auth.AccessTokenTTL }

// # Fixture

type serviceFixture struct {
	service     *auth.Service
	users       *fakeUserRepository
	memberships *fakeMembershipRepository
	refresh     *fakeRefreshStore
	events      *audit.MemoryRecorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		users:       &fakeUserRepository{},
		memberships: &fakeMembershipRepository{},
		refresh:     newFakeRefreshStore(),
		events:      audit.NewMemoryRecorder(),
	}
	fixture.service = auth.NewService(
		fixture.users,
		&fakeCompanyRepository{},
		fixture.memberships,
		fixture.refresh,
		stubIssuer{},
		fixture.events,
	)
	return fixture
}

// seedUser registers an active account with a bcrypt hash of the password.
func (fixture *serviceFixture) seedUser(t *testing.T, id, email, password string) *auth.User {
	t.Helper()
	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	user := &auth.User{ID: id, Email: email, PasswordHash: hash, IsActive: true}
	fixture.users.users = append(fixture.users.users, user)
	return user
}

func (fixture *serviceFixture) seedMembership(userID, companyID string, role sec.Role, createdAt time.Time) {
	fixture.memberships.memberships = append(fixture.memberships.memberships, auth.Membership{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		CreatedAt: createdAt,
	})
}

const (
	userID      = "0192f4a1-0000-7000-8000-000000000001"
	companyOne  = "0192f4a1-0000-7000-8000-00000000c001"
	companyTwo  = "0192f4a1-0000-7000-8000-00000000c002"
	goodPasswd  = "hunter2-but-longer"
	loginSender = "203.0.113.7"
)

// # Provisioning

/*
TestService_Register verifies tenant provisioning creates the full triple and
rejects duplicate emails.
*/
func TestService_Register(t *testing.T) {
	fixture := newServiceFixture(t)
	ctx := context.Background()

	session, err := fixture.service.Register(ctx, auth.RegisterInput{
		Email:       "founder@example.com",
		Password:    goodPasswd,
		Name:        "Founder",
		CompanyName: "Acme Trading",
	})
	require.NoError(t, err)

	// The first user of a company is its owner, logged in immediately.
	assert.Equal(t, sec.RoleOwner, session.Role)
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.NotEmpty(t, session.CompanyID)

	_, found := fixture.events.Find("company_provisioned")
	assert.True(t, found)

	// Same email again must conflict.
	_, err = fixture.service.Register(ctx, auth.RegisterInput{
		Email:       "founder@example.com",
		Password:    goodPasswd,
		CompanyName: "Acme Again",
	})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "CONFLICT", appError.Code)
}

// # Login

/*
TestService_Login covers the credential ladder and membership resolution.
*/
func TestService_Login(t *testing.T) {
	t.Run("defaults_to_oldest_membership", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now().Add(-48*time.Hour))
		fixture.seedMembership(userID, companyTwo, sec.RoleSeller, time.Now())

		session, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:    "user@example.com",
			Password: goodPasswd,
		})
		require.NoError(t, err)
		assert.Equal(t, companyOne, session.CompanyID)
		assert.Equal(t, sec.RoleOwner, session.Role)

		_, found := fixture.events.Find("login_succeeded")
		assert.True(t, found)
	})

	t.Run("honors_requested_company", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now().Add(-48*time.Hour))
		fixture.seedMembership(userID, companyTwo, sec.RoleSeller, time.Now())

		session, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:     "user@example.com",
			Password:  goodPasswd,
			CompanyID: companyTwo,
		})
		require.NoError(t, err)
		assert.Equal(t, companyTwo, session.CompanyID)
		assert.Equal(t, sec.RoleSeller, session.Role)
	})

	t.Run("unknown_email_and_bad_password_look_identical", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now())

		_, unknownErr := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:     "nobody@example.com",
			Password:  goodPasswd,
			IPAddress: loginSender,
		})
		_, badPassErr := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:     "user@example.com",
			Password:  "wrong-password",
			IPAddress: loginSender,
		})

		require.Error(t, unknownErr)
		assert.Equal(t, unknownErr.Error(), badPassErr.Error())

		event, found := fixture.events.Find("login_failed")
		require.True(t, found)
		assert.Equal(t, audit.SeverityMedium, event.Severity)
		assert.Equal(t, loginSender, event.Fields["ip"])
	})

	t.Run("inactive_account_refused", func(t *testing.T) {
		fixture := newServiceFixture(t)
		user := fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		user.IsActive = false
		fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now())

		_, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:    "user@example.com",
			Password: goodPasswd,
		})
		assert.EqualError(t, err, "Account is inactive")

		_, found := fixture.events.Find("login_rejected_inactive")
		assert.True(t, found)
	})

	t.Run("no_membership_is_forbidden", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)

		_, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:    "user@example.com",
			Password: goodPasswd,
		})
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "FORBIDDEN", appError.Code)
	})
}

// # Rotation

/*
TestService_RefreshSession verifies rotation, replay detection, and the
re-checks performed on every rotation.
*/
func TestService_RefreshSession(t *testing.T) {
	login := func(t *testing.T, fixture *serviceFixture) *auth.LoginSession {
		t.Helper()
		session, err := fixture.service.Login(context.Background(), auth.LoginInput{
			Email:    "user@example.com",
			Password: goodPasswd,
		})
		require.NoError(t, err)
		return session
	}

	t.Run("rotation_invalidates_the_old_token", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleSeller, time.Now())
		session := login(t, fixture)

		rotated, err := fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
		assert.Equal(t, companyOne, rotated.CompanyID)

		// The spent token must be rejected, and audited as a replay.
		_, err = fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		assert.EqualError(t, err, "Invalid or expired refresh token")

		event, found := fixture.events.Find("refresh_token_replayed")
		require.True(t, found)
		assert.Equal(t, audit.SeverityMedium, event.Severity)
	})

	t.Run("role_change_takes_effect_on_rotation", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleSeller, time.Now())
		session := login(t, fixture)

		// Demote the user between login and refresh.
		fixture.memberships.memberships[0].Role = sec.RoleEmployee

		rotated, err := fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, sec.RoleEmployee, rotated.Role)
	})

	t.Run("deactivated_account_cannot_rotate", func(t *testing.T) {
		fixture := newServiceFixture(t)
		user := fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleSeller, time.Now())
		session := login(t, fixture)

		user.IsActive = false

		_, err := fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		assert.EqualError(t, err, "Account is inactive")
	})

	t.Run("store_outage_is_not_a_credential_verdict", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleSeller, time.Now())
		session := login(t, fixture)

		fixture.users.findErr = errors.New("connection refused")

		_, err := fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		require.Error(t, err)
		// The fault must propagate as-is, never mapped to a 401 AppError.
		assert.Nil(t, apperr.As(err))
	})

	t.Run("revoked_membership_cannot_rotate", func(t *testing.T) {
		fixture := newServiceFixture(t)
		fixture.seedUser(t, userID, "user@example.com", goodPasswd)
		fixture.seedMembership(userID, companyOne, sec.RoleSeller, time.Now())
		session := login(t, fixture)

		fixture.memberships.memberships = nil

		_, err := fixture.service.RefreshSession(context.Background(), session.RefreshToken)
		assert.EqualError(t, err, "Invalid or expired refresh token")
	})
}

// # Revocation

/*
TestService_Logout verifies revocation is effective and idempotent.
*/
func TestService_Logout(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.seedUser(t, userID, "user@example.com", goodPasswd)
	fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now())

	session, err := fixture.service.Login(context.Background(), auth.LoginInput{
		Email:    "user@example.com",
		Password: goodPasswd,
	})
	require.NoError(t, err)

	require.NoError(t, fixture.service.Logout(context.Background(), session.RefreshToken))

	_, err = fixture.service.RefreshSession(context.Background(), session.RefreshToken)
	assert.EqualError(t, err, "Invalid or expired refresh token")

	// Logging out again, or with garbage, still succeeds.
	assert.NoError(t, fixture.service.Logout(context.Background(), session.RefreshToken))
	assert.NoError(t, fixture.service.Logout(context.Background(), "never-issued"))
}

// # Tenant Selection

/*
TestService_SwitchCompany verifies reissue for another membership and the
denial path for companies the user does not belong to.
*/
func TestService_SwitchCompany(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.seedUser(t, userID, "user@example.com", goodPasswd)
	fixture.seedMembership(userID, companyOne, sec.RoleOwner, time.Now().Add(-time.Hour))
	fixture.seedMembership(userID, companyTwo, sec.RoleSeller, time.Now())

	t.Run("switch_to_second_membership", func(t *testing.T) {
		session, err := fixture.service.SwitchCompany(context.Background(), userID, companyTwo)
		require.NoError(t, err)
		assert.Equal(t, companyTwo, session.CompanyID)
		assert.Equal(t, sec.RoleSeller, session.Role)
		assert.Contains(t, session.AccessToken, companyTwo)

		_, found := fixture.events.Find("company_switched")
		assert.True(t, found)
	})

	t.Run("switch_without_membership_denied", func(t *testing.T) {
		_, err := fixture.service.SwitchCompany(context.Background(), userID, "0192f4a1-0000-7000-8000-00000000c999")
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "FORBIDDEN", appError.Code)

		event, found := fixture.events.Find("company_switch_denied")
		require.True(t, found)
		assert.Equal(t, audit.SeverityMedium, event.Severity)
	})
}
