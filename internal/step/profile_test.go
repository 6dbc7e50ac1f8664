package step_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alkime/voicebank/internal/api"
	"github.com/alkime/voicebank/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() api.Profile {
	return api.Profile{
		Name:      "Nguyễn Thị Lan",
		Phone:     "+84901234567",
		Gender:    "female",
		BirthYear: 1990,
		Region:    "Hà Nội",
	}
}

func TestValidateProfile(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(p *api.Profile)
		wantErr string
	}{
		{name: "valid", mutate: func(*api.Profile) {}},
		{name: "local phone", mutate: func(p *api.Profile) { p.Phone = "0901234567" }},
		{name: "blank name", mutate: func(p *api.Profile) { p.Name = "  " }, wantErr: "name"},
		{name: "short phone", mutate: func(p *api.Profile) { p.Phone = "12345678" }, wantErr: "phone"},
		{name: "long phone", mutate: func(p *api.Profile) { p.Phone = "1234567890123456" }, wantErr: "phone"},
		{name: "phone with dashes", mutate: func(p *api.Profile) { p.Phone = "090-123-4567" }, wantErr: "phone"},
		{name: "unknown gender", mutate: func(p *api.Profile) { p.Gender = "robot" }, wantErr: "gender"},
		{name: "too old", mutate: func(p *api.Profile) { p.BirthYear = 1899 }, wantErr: "birth year"},
		{name: "too young", mutate: func(p *api.Profile) { p.BirthYear = 2017 }, wantErr: "birth year"},
		{name: "youngest allowed", mutate: func(p *api.Profile) { p.BirthYear = 2016 }},
		{name: "no region", mutate: func(p *api.Profile) { p.Region = "" }, wantErr: "region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validProfile()
			tt.mutate(&p)

			err := step.ValidateProfile(p, now)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, step.ErrInvalidForm)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProfile_ReportsAllFields(t *testing.T) {
	t.Parallel()

	err := step.ValidateProfile(api.Profile{}, time.Now())
	require.Error(t, err)
	for _, field := range []string{"name", "phone", "gender", "birth year", "region"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestProfile_Submit(t *testing.T) {
	t.Parallel()

	client := &fakeAPI{}
	p := step.NewProfile(client)
	assert.False(t, p.Completed())

	form := validProfile()
	form.Gender = " Female "
	user, err := p.Submit(t.Context(), form)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "u-1", p.UserID())
	assert.True(t, p.Completed())

	require.Len(t, client.profiles, 1)
	assert.Equal(t, "female", client.profiles[0].Gender)
}

func TestProfile_SubmitInvalidSkipsNetwork(t *testing.T) {
	t.Parallel()

	client := &fakeAPI{}
	p := step.NewProfile(client)

	_, err := p.Submit(t.Context(), api.Profile{Name: "x"})
	require.ErrorIs(t, err, step.ErrInvalidForm)
	assert.Empty(t, client.profiles)
	assert.False(t, p.Completed())
}

func TestProfile_SubmitFailure(t *testing.T) {
	t.Parallel()

	client := &fakeAPI{createErr: errors.New("503")}
	p := step.NewProfile(client)

	_, err := p.Submit(t.Context(), validProfile())
	require.Error(t, err)
	assert.False(t, p.Completed())

	p.Restore("u-9")
	assert.Equal(t, "u-9", p.UserID())
}
