package identity

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("test_signing_key")

func newTestService(db database.ChurchRepository) *Service {
	s := NewService(db, testKey, time.Hour)
	s.cost = bcrypt.MinCost
	return s
}

func hashOf(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestSignUp_AlwaysMember(t *testing.T) {
	for _, requested := range []string{"", "member", "admin", "pastor"} {
		t.Run("requested "+requested, func(t *testing.T) {
			db := &database.MockChurchRepository{}
			db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
				return p.Role == types.RoleMember && p.EmailAddress == "a@b.com" &&
					bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("pw")) == nil
			})).Return(database.User{Id: 1, EmailAddress: "a@b.com", FirstName: "A", LastName: "B"}, nil)

			s := newTestService(db)
			user, err := s.SignUp(SignUpParams{
				Email:         "A@b.com",
				Password:      "pw",
				FirstName:     "A",
				LastName:      "B",
				RequestedRole: requested,
			})

			require.NoError(t, err)
			assert.Equal(t, 1, user.Id)
			assert.Equal(t, "A B", user.DisplayName())
			db.AssertExpectations(t)
		})
	}
}

func TestSignUp_Errors(t *testing.T) {
	tcases := []struct {
		name     string
		params   SignUpParams
		dbErr    error
		expected error
	}{
		{
			name:     "duplicate email",
			params:   SignUpParams{Email: "a@b.com", Password: "pw"},
			dbErr:    database.ErrDuplicate,
			expected: ErrEmailTaken,
		},
		{
			name:     "invalid email",
			params:   SignUpParams{Email: "not-an-email", Password: "pw"},
			expected: ErrInvalidSignUp,
		},
		{
			name:     "empty password",
			params:   SignUpParams{Email: "a@b.com"},
			expected: ErrInvalidSignUp,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChurchRepository{}
			if tc.dbErr != nil {
				db.On("CreateAccount", mock.Anything).Return(database.User{}, tc.dbErr)
			}

			_, err := newTestService(db).SignUp(tc.params)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestSignIn(t *testing.T) {
	account := database.User{
		Id:           7,
		EmailAddress: "a@b.com",
		PasswordHash: hashOf(t, "correct"),
	}

	tcases := []struct {
		name     string
		password string
		account  database.User
		dbErr    error
		expected error
	}{
		{name: "valid credentials", password: "correct", account: account},
		{name: "wrong password", password: "wrong", account: account, expected: ErrInvalidCredentials},
		{name: "unknown email", password: "correct", dbErr: sql.ErrNoRows, expected: ErrInvalidCredentials},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChurchRepository{}
			db.On("GetAccountByEmail", "a@b.com").Return(tc.account, tc.dbErr)

			s := newTestService(db)
			user, token, err := s.SignIn(" A@B.com ", tc.password)
			if tc.expected != nil {
				assert.ErrorIs(t, err, tc.expected)
				assert.Empty(t, token)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 7, user.Id)
			id, err := s.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, 7, id)
		})
	}
}

func TestSignIn_BackendFailure(t *testing.T) {
	db := &database.MockChurchRepository{}
	db.On("GetAccountByEmail", "a@b.com").Return(database.User{}, errors.New("connection reset"))

	_, _, err := newTestService(db).SignIn("a@b.com", "pw")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken(t *testing.T) {
	s := newTestService(&database.MockChurchRepository{})

	expired := newTestService(&database.MockChurchRepository{})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.IssueToken(1)
	require.NoError(t, err)

	foreign := NewService(nil, []byte("another_key"), time.Hour)
	foreignToken, err := foreign.IssueToken(1)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{userIdClaim: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expiredToken,
		"wrong key": foreignToken,
		"unsigned":  noneToken,
		"malformed": "not.a.token",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRole(t *testing.T) {
	tcases := []struct {
		name     string
		role     string
		err      error
		expected string
		wantErr  bool
	}{
		{name: "admin", role: "admin", expected: "admin"},
		{name: "no record", err: sql.ErrNoRows, expected: types.RoleMember},
		{name: "empty role", role: "", expected: types.RoleMember},
		{name: "lookup failure", err: errors.New("timeout"), wantErr: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChurchRepository{}
			db.On("GetRole", 3).Return(tc.role, tc.err)

			role, err := newTestService(db).Role(3)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, role)
		})
	}
}
