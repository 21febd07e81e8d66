package session

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskora/taskora-go/core"
)

func TestRegisterInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      RegisterInput
		wantErr bool
	}{
		{name: "valid student", in: RegisterInput{Email: "a@uni.test", Password: "pwd123456"}},
		{name: "valid instructor", in: RegisterInput{Email: "a@uni.test", Password: "pwd123456", Role: "instructor"}},
		{name: "email is cleaned and lowered", in: RegisterInput{Email: "  A@Uni.Test ", Password: "pwd123456"}},
		{name: "missing email", in: RegisterInput{Password: "pwd123456"}, wantErr: true},
		{name: "malformed email", in: RegisterInput{Email: "nope", Password: "pwd123456"}, wantErr: true},
		{name: "missing password", in: RegisterInput{Email: "a@uni.test"}, wantErr: true},
		{name: "short password", in: RegisterInput{Email: "a@uni.test", Password: "12345"}, wantErr: true},
		{name: "unknown role", in: RegisterInput{Email: "a@uni.test", Password: "pwd123456", Role: "admin"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterInput_Validate_fieldErrors(t *testing.T) {
	in := RegisterInput{Email: "nope", Role: "admin"}
	err := in.Validate()
	require.Error(t, err)

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))

	fields := make(map[string]string, len(vErr.Fields))
	for _, fld := range vErr.Fields {
		fields[fld.Field] = fld.Error
	}
	assert.Contains(t, fields, "email")
	assert.Equal(t, "this field is required", fields["password"])
	assert.Equal(t, "must be one of 'student' or 'instructor'", fields["role"])
}

func TestProfileUpdate_Validate_fieldErrors(t *testing.T) {
	role := "admin"
	err := (&ProfileUpdate{Role: &role}).Validate()
	require.Error(t, err)

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "role", vErr.Fields[0].Field)
	assert.Equal(t, "must be one of 'student' or 'instructor'", vErr.Fields[0].Error)
}

func TestRegisterInput_Validate_cleansFields(t *testing.T) {
	in := RegisterInput{Email: "  A@Uni.Test ", Password: "pwd123456", Name: "  Jane ", Role: " STUDENT "}
	assert.NoError(t, in.Validate())
	assert.Equal(t, "a@uni.test", in.Email)
	assert.Equal(t, "Jane", in.Name)
	assert.Equal(t, "student", in.Role)
}

func TestProfile_merge(t *testing.T) {
	prof := Profile{
		ID:    "uid-001",
		Email: "a@uni.test",
		Name:  "A",
		Role:  RoleStudent,
		Extra: map[string]interface{}{"campus": "north", "year": 2},
	}

	name := "B"
	prof.merge(ProfileUpdate{Name: &name})
	assert.Equal(t, "B", prof.Name)
	assert.Equal(t, RoleStudent, prof.Role)

	role := RoleInstructor
	prof.merge(ProfileUpdate{Role: &role, Extra: map[string]interface{}{"year": 3}})
	assert.Equal(t, "B", prof.Name)
	assert.Equal(t, RoleInstructor, prof.Role)
	assert.Equal(t, 3, prof.Extra["year"])
	assert.Equal(t, "north", prof.Extra["campus"])
}
