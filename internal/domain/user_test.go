package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	user, err := NewUser("test@example.com", "longenoughpassword")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.False(t, user.IsAdministrator)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = NewUser("", "longenoughpassword")
	assert.ErrorIs(t, err, ErrEmptyEmail)

	_, err = NewUser("invalidemail", "longenoughpassword")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewUser("test@example.com", "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *User)
		wantErr error
	}{
		{"valid", func(u *User) {}, nil},
		{"missing id", func(u *User) { u.ID = uuid.Nil }, ErrEmptyUserID},
		{"email without domain dot", func(u *User) { u.Email = "user@example" }, ErrInvalidEmail},
		{"email starting with at", func(u *User) { u.Email = "@example.com" }, ErrInvalidEmail},
		{"short password", func(u *User) { u.Password = "short" }, ErrPasswordTooShort},
		{"long password", func(u *User) { u.Password = string(make([]byte, 73)) }, ErrPasswordTooLong},
		{"hash only", func(u *User) { u.Password = ""; u.HashedPassword = "$2a$10$hash" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{
				ID:       uuid.New(),
				Email:    "test@example.com",
				Password: "longenoughpassword",
			}
			tt.mutate(u)

			err := u.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserFullName(t *testing.T) {
	u := &User{Firstname: "Ada", Lastname: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", u.FullName())

	u = &User{Firstname: "Ada"}
	assert.Equal(t, "Ada", u.FullName())
}
