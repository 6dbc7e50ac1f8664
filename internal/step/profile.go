package step

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alkime/voicebank/internal/api"
)

// Accepted profile genders.
var genders = []string{"male", "female", "other"}

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
	minBirthYear   = 1900
	minDonorAge    = 10
)

// ProfileAPI is the collaborator surface the profile step needs.
type ProfileAPI interface {
	CreateUser(ctx context.Context, p api.Profile) (api.User, error)
}

// ValidateProfile checks a profile form. All field problems are reported
// together, each wrapping ErrInvalidForm.
func ValidateProfile(p api.Profile, now time.Time) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidForm}, args...)...))
	}

	if strings.TrimSpace(p.Name) == "" {
		fail("name is required")
	}

	if !validPhone(p.Phone) {
		fail("phone must be %d to %d digits with an optional leading +", minPhoneDigits, maxPhoneDigits)
	}

	gender := strings.ToLower(strings.TrimSpace(p.Gender))
	known := false
	for _, g := range genders {
		known = known || g == gender
	}
	if !known {
		fail("gender must be one of %s", strings.Join(genders, ", "))
	}

	if latest := now.Year() - minDonorAge; p.BirthYear < minBirthYear || p.BirthYear > latest {
		fail("birth year must be between %d and %d", minBirthYear, latest)
	}

	if strings.TrimSpace(p.Region) == "" {
		fail("region is required")
	}

	return errors.Join(errs...)
}

func validPhone(phone string) bool {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Profile submits the donor form and remembers the created user.
type Profile struct {
	client ProfileAPI
	now    func() time.Time

	mu   sync.Mutex
	user api.User
}

// NewProfile creates the profile step.
func NewProfile(client ProfileAPI) *Profile {
	return &Profile{client: client, now: time.Now}
}

// Validate checks a form against the current date.
func (p *Profile) Validate(form api.Profile) error {
	return ValidateProfile(form, p.now())
}

// Submit validates and creates the donor.
func (p *Profile) Submit(ctx context.Context, form api.Profile) (api.User, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Phone = strings.TrimSpace(form.Phone)
	form.Gender = strings.ToLower(strings.TrimSpace(form.Gender))
	form.Region = strings.TrimSpace(form.Region)

	if err := p.Validate(form); err != nil {
		return api.User{}, err
	}

	user, err := p.client.CreateUser(ctx, form)
	if err != nil {
		return api.User{}, fmt.Errorf("failed to create donor: %w", err)
	}

	p.mu.Lock()
	p.user = user
	p.mu.Unlock()

	return user, nil
}

// Restore adopts an existing donor, e.g. when resuming a session.
func (p *Profile) Restore(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.user = api.User{ID: userID}
}

// UserID returns the created donor's ID, or "" before submission.
func (p *Profile) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.user.ID
}

// Mount is a no-op.
func (p *Profile) Mount(context.Context, string) error {
	return nil
}

// Unmount is a no-op.
func (p *Profile) Unmount() {}

// Completed reports whether the donor exists.
func (p *Profile) Completed() bool {
	return p.UserID() != ""
}
