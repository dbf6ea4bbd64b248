package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72,pwbytes"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=ADMIN USER"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(signupRequest{Email: "a@example.com", Name: "A", Password: "longenough"})
		assert.NoError(t, err)
	})

	t.Run("reports json field names", func(t *testing.T) {
		err := ValidateStruct(signupRequest{Email: "nope", Password: "short", Role: "OWNER"})
		require.Error(t, err)
		require.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "email must be a valid email", fields["email"])
		assert.Equal(t, "name is required", fields["name"])
		assert.Equal(t, "password must be at least 8 characters", fields["password"])
		assert.Equal(t, "role must be one of: ADMIN USER", fields["role"])
	})

	t.Run("blank name", func(t *testing.T) {
		err := ValidateStruct(signupRequest{Email: "a@example.com", Name: " \t ", Password: "longenough"})
		require.Error(t, err)
		assert.Equal(t, "name must not be blank", GetValidationFields(err)["name"])
	})

	t.Run("password over 72 bytes in under 72 characters", func(t *testing.T) {
		err := ValidateStruct(signupRequest{Email: "a@example.com", Name: "A", Password: strings.Repeat("é", 40)})
		require.Error(t, err)
		assert.Equal(t, "password must be at most 72 bytes", GetValidationFields(err)["password"])
	})
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid body", `{"email":"a@example.com","name":"A","password":"longenough"}`, ""},
		{"empty body", ``, "body"},
		{"malformed json", `{"email":`, "body"},
		{"unknown field", `{"email":"a@example.com","name":"A","password":"longenough","admin":true}`, "body"},
		{"failed validation", `{"email":"a@example.com","password":"longenough"}`, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst signupRequest
			err := DecodeJSON(req, &dst)

			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@example.com", dst.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, GetValidationFields(err), tt.wantField)
		})
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()

	got, err := ParseUUID(id.String(), "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUID("not-a-uuid", "id")
	require.Error(t, err)
	assert.Equal(t, "id must be a valid UUID", GetValidationFields(err)["id"])
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", 1, 10, 0, false},
		{"second page", "?page=2&limit=10", 2, 10, 10, false},
		{"limit capped", "?limit=1000", 1, 100, 0, false},
		{"zero page", "?page=0", 0, 0, 0, true},
		{"negative limit", "?limit=-5", 0, 0, 0, true},
		{"non numeric", "?page=abc", 0, 0, 0, true},
		{"last allowed page", "?page=1048576&limit=100", MaxPage, 100, (MaxPage - 1) * 100, false},
		{"page beyond bound", "?page=1048577", 0, 0, 0, true},
		{"overflowing page", "?page=922337203685477580&limit=10", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users"+tt.query, nil)

			p, err := ParsePagination(req, 10, 100)
			if tt.wantErr {
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewFieldError("x", "bad")))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Nil(t, GetValidationFields(errors.New("plain")))
}
