package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

// --- Mock implementations ---

type mockRepo struct {
	accounts map[string]*Account
	students map[string]*Student
	vendors  map[string]*vendor.Vendor
	findErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		accounts: map[string]*Account{},
		students: map[string]*Student{},
		vendors:  map[string]*vendor.Vendor{},
	}
}

func (m *mockRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) CreateStudent(_ context.Context, a *Account, s *Student) error {
	if _, ok := m.accounts[a.Email]; ok {
		return ErrEmailTaken
	}
	m.accounts[a.Email] = a
	m.students[s.ID] = s
	return nil
}

func (m *mockRepo) CreateVendor(_ context.Context, a *Account, v *vendor.Vendor) error {
	if _, ok := m.accounts[a.Email]; ok {
		return ErrEmailTaken
	}
	m.accounts[a.Email] = a
	m.vendors[v.ID] = v
	return nil
}

func (m *mockRepo) HasProfile(_ context.Context, id string, role Role) (bool, error) {
	switch role {
	case RoleStudent:
		_, ok := m.students[id]
		return ok, nil
	case RoleVendor:
		_, ok := m.vendors[id]
		return ok, nil
	}
	return false, nil
}

func (m *mockRepo) Student(_ context.Context, id string) (*Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s, nil
}

// --- Helpers ---

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, bcrypt.MinCost), repo
}

func validVendor() VendorSignUp {
	return VendorSignUp{
		Email:          "Owner@Dhaba.example",
		Password:       "secret1",
		OwnerName:      "Ravi",
		Phone:          "+91 98765 43210",
		RestaurantName: "Hostel Dhaba",
		Location:       "Block C",
	}
}

// --- Tests ---

func TestSignUpStudent(t *testing.T) {
	svc, repo := newTestService()

	a, err := svc.SignUpStudent(context.Background(), StudentSignUp{
		Name:     " Asha ",
		Email:    " Asha@Campus.Example ",
		Password: "hunter22",
	})
	require.NoError(t, err)

	assert.Equal(t, "asha@campus.example", a.Email)
	assert.Equal(t, RoleStudent, a.Role)
	assert.NotEqual(t, "hunter22", a.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("hunter22")))

	st := repo.students[a.ID]
	require.NotNil(t, st)
	assert.Equal(t, "Asha", st.Name)
	assert.Equal(t, a.Email, st.Email)
}

func TestSignUpStudent_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    StudentSignUp
		field string
	}{
		{"missing name", StudentSignUp{Email: "a@b.c", Password: "123456"}, "name"},
		{"missing email", StudentSignUp{Name: "A", Password: "123456"}, "email"},
		{"missing password", StudentSignUp{Name: "A", Email: "a@b.c"}, "password"},
		{"bad email", StudentSignUp{Name: "A", Email: "nope", Password: "123456"}, "email"},
		{"short password", StudentSignUp{Name: "A", Email: "a@b.c", Password: "12345"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()

			_, err := svc.SignUpStudent(context.Background(), tt.in)

			var fe *validation.FieldError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.field, fe.Field)
			assert.Empty(t, repo.accounts)
		})
	}
}

func TestSignUp_EmailTakenAcrossRoles(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUpVendor(ctx, validVendor())
	require.NoError(t, err)

	_, err = svc.SignUpStudent(ctx, StudentSignUp{Name: "X", Email: "owner@dhaba.example", Password: "123456"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUpVendor_Defaults(t *testing.T) {
	svc, repo := newTestService()

	a, err := svc.SignUpVendor(context.Background(), validVendor())
	require.NoError(t, err)

	v := repo.vendors[a.ID]
	require.NotNil(t, v)
	assert.Equal(t, RoleVendor, a.Role)
	assert.Equal(t, "Hostel Dhaba", v.RestaurantName)
	assert.Equal(t, "owner@dhaba.example", v.Email)
	assert.True(t, v.IsActive)
	assert.True(t, v.Rating.IsZero())
	assert.Zero(t, v.TotalReviews)
	assert.Zero(t, v.TotalOrders)
	assert.Equal(t, DefaultOpeningTime, v.OpeningTime)
	assert.Equal(t, DefaultClosingTime, v.ClosingTime)
}

func TestSignUpVendor_MissingField(t *testing.T) {
	svc, _ := newTestService()
	in := validVendor()
	in.RestaurantName = ""

	_, err := svc.SignUpVendor(context.Background(), in)

	var fe *validation.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "restaurantName", fe.Field)
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	created, err := svc.SignUpStudent(ctx, StudentSignUp{Name: "A", Email: "a@campus.example", Password: "123456"})
	require.NoError(t, err)

	a, err := svc.SignIn(ctx, "A@Campus.example", "123456", RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, created.ID, a.ID)
	assert.Equal(t, RoleStudent, a.Role)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.SignUpStudent(ctx, StudentSignUp{Name: "A", Email: "a@campus.example", Password: "123456"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "a@campus.example", "wrong!", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "ghost@campus.example", "123456", RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignIn_ProfileMissingForRole(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.SignUpStudent(ctx, StudentSignUp{Name: "A", Email: "a@campus.example", Password: "123456"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "a@campus.example", "123456", RoleVendor)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSignIn_InvalidRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SignIn(context.Background(), "a@b.c", "123456", Role("admin"))
	assert.True(t, validation.IsValidation(err))
}

func TestSignIn_RepoError(t *testing.T) {
	svc, repo := newTestService()
	repo.findErr = errors.New("timeout")

	_, err := svc.SignIn(context.Background(), "a@b.c", "123456", RoleStudent)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "find account")
}
