package engine

import "golang.org/x/crypto/bcrypt"

type DurationBand string

const (
	DurationShort  DurationBand = "short"
	DurationNormal DurationBand = "normal"
	DurationLong   DurationBand = "long"
)

const (
	DefaultLives = 3
	MinLives     = 3
	MaxLives     = 15
)

type Settings struct {
	Lives        int          `json:"lives"`
	IsPublic     bool         `json:"isPublic"`
	Duration     DurationBand `json:"minigameDuration"`
	HasPassword  bool         `json:"hasPassword"`
	PasswordHash string       `json:"-"`
}

// Range returns the inclusive round length bounds in seconds.
func (b DurationBand) Range() (int, int) {
	switch b {
	case DurationShort:
		return 8, 10
	case DurationLong:
		return 12, 15
	default:
		return 10, 12
	}
}

// NormalizeSettings clamps lives and fills defaults. A non-empty password is
// hashed; the plaintext is never kept.
func NormalizeSettings(s Settings, password string) (Settings, error) {
	switch {
	case s.Lives == 0:
		s.Lives = DefaultLives
	case s.Lives < MinLives:
		s.Lives = MinLives
	case s.Lives > MaxLives:
		s.Lives = MaxLives
	}

	switch s.Duration {
	case DurationShort, DurationNormal, DurationLong:
	default:
		s.Duration = DurationNormal
	}

	s.HasPassword = false
	s.PasswordHash = ""
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return s, err
		}
		s.PasswordHash = string(hash)
		s.HasPassword = true
	}
	return s, nil
}
