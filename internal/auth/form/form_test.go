package form_test

import (
	"testing"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/scrum0/scrum0/internal/auth/form"
	"github.com/stretchr/testify/require"
)

func TestSignIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		email string
		pass  string
		want  string
	}{
		{"missing email", "", "secret1", form.MsgRequired},
		{"missing password", "a@b.com", "", form.MsgRequired},
		{"no at sign", "ab.com", "secret1", form.MsgInvalidEmail},
		{"no tld", "a@b", "secret1", form.MsgInvalidEmail},
		{"inner space", "a b@c.com", "secret1", form.MsgInvalidEmail},
		{"short password", "a@b.com", "12345", form.MsgPasswordTooShort},
		{"bad email wins over short password", "nope", "1", form.MsgInvalidEmail},
		{"valid", "a@b.com", "secret1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := form.SignIn(domain.Credential{Email: tt.email, Password: tt.pass})
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrValidation)
			require.Equal(t, tt.want, domain.UserMessage(err))
		})
	}
}

func TestSignIn_TrimsEmail(t *testing.T) {
	t.Parallel()

	c, err := form.SignIn(domain.Credential{Email: "  a@b.com ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "a@b.com", c.Email)
}

func TestSignUp_Order(t *testing.T) {
	t.Parallel()

	t.Run("password checked before username", func(t *testing.T) {
		_, err := form.SignUp(domain.SignUpInput{
			Credential: domain.Credential{Email: "a@b.com", Password: "123"},
			Username:   "x",
		})
		require.Equal(t, form.MsgPasswordTooShort, domain.UserMessage(err))
	})

	t.Run("username required", func(t *testing.T) {
		_, err := form.SignUp(domain.SignUpInput{
			Credential: domain.Credential{Email: "a@b.com", Password: "secret1"},
			Username:   "   ",
		})
		require.Equal(t, form.MsgUsernameRequired, domain.UserMessage(err))
	})

	t.Run("username too short", func(t *testing.T) {
		_, err := form.SignUp(domain.SignUpInput{
			Credential: domain.Credential{Email: "a@b.com", Password: "secret1"},
			Username:   "ab",
		})
		require.Equal(t, form.MsgUsernameTooShort, domain.UserMessage(err))
	})
}

func TestSignUp_Normalizes(t *testing.T) {
	t.Parallel()

	in, err := form.SignUp(domain.SignUpInput{
		Credential: domain.Credential{Email: " Dev@Scrum0.dev ", Password: "secret1"},
		Username:   "  SprintMaster ",
		FullName:   " Sam Doe ",
	})
	require.NoError(t, err)
	require.Equal(t, "Dev@Scrum0.dev", in.Email)
	require.Equal(t, "sprintmaster", in.Username)
	require.Equal(t, "Sam Doe", in.FullName)
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()

	short := "Al"
	_, err := form.ProfileUpdate(domain.ProfileUpdate{Username: &short})
	require.ErrorIs(t, err, domain.ErrValidation)

	name := " NewName "
	u, err := form.ProfileUpdate(domain.ProfileUpdate{Username: &name})
	require.NoError(t, err)
	require.Equal(t, "newname", *u.Username)
}
