package hopon

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Status is the session state of the current actor
type Status = string

const (
	// StatusLoading is the initial state until the first session check resolves
	StatusLoading Status = "loading"
	// StatusAuthenticated means user and access token are both present
	StatusAuthenticated Status = "authenticated"
	// StatusGuest is the unauthenticated fallback state
	StatusGuest Status = "guest"
)

// User is the profile snapshot held while authenticated
type User struct {
	ID                 int        `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Bio                string     `json:"bio,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	Rating             float64    `json:"rating,omitempty"`
	Location           string     `json:"location,omitempty"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	Sports             []string   `json:"sports,omitempty"`
	EventsCount        int        `json:"events_count,omitempty"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	IsFollowing        bool       `json:"is_following,omitempty"`
	NeedsUsernameSetup bool       `json:"needs_username_setup,omitempty"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
}

// Event is a pickup game listing
type Event struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Sport          string     `json:"sport"`
	Location       string     `json:"location"`
	Notes          string     `json:"notes,omitempty"`
	MaxPlayers     int        `json:"max_players"`
	CurrentPlayers int        `json:"current_players"`
	EventDate      string     `json:"event_date,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	SkillLevel     string     `json:"skill_level,omitempty"`
	HostUserID     *int       `json:"host_user_id,omitempty"`
	DistanceKm     *float64   `json:"distance_km,omitempty"`
	Host           *EventHost `json:"host,omitempty"`
}

// EventHost is the embedded host summary on an event
type EventHost struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AuthPayload is the handoff bundle produced by a successful authentication.
// It is the single shape by which auth results enter session state, whether
// it arrived over the completion channel, out of durable storage, or from a
// login/signup/refresh response body.
type AuthPayload struct {
	User               *User  `json:"user,omitempty"`
	AccessToken        string `json:"access_token,omitempty"`
	NeedsUsernameSetup bool   `json:"needs_username_setup,omitempty"`
}

// Empty reports whether the payload carries neither user nor token.
func (p AuthPayload) Empty() bool {
	return p.User == nil && p.AccessToken == ""
}

// AuthMessageSource tags which channel delivered a handoff payload.
type AuthMessageSource string

const (
	// SourceMessage is a payload that arrived on the completion channel
	SourceMessage AuthMessageSource = "message"
	// SourceStorage is a payload recovered from the durable storage fallback
	SourceStorage AuthMessageSource = "storage"
)

// AuthMessage is one delivery of a handoff payload.
type AuthMessage struct {
	Type    string            `json:"type"`
	Payload AuthPayload       `json:"payload"`
	Source  AuthMessageSource `json:"-"`
}

// AuthMessageType is the recognized message shape on the completion channel.
const AuthMessageType = "hopon:auth"

// SessionResult is the session probe response
type SessionResult struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
}

// Credentials is the email/password login input
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// SignupInput is the signup request body
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (s SignupInput) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&s.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&s.Username, validation.Required, validation.Length(3, 30)),
	)
}

// DemoOptions customizes the development demo login
type DemoOptions struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// SetupAccountInput completes a profile after a first social login
type SetupAccountInput struct {
	Username  string   `json:"username"`
	Bio       string   `json:"bio,omitempty"`
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Sports    []string `json:"sports,omitempty"`
}

func (s SetupAccountInput) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Username, validation.Required, validation.Length(3, 30)),
	)
}

// JoinEventInput is the body for joining an event. GuestToken lets a
// returning guest be recognized; PlayerName labels first-time guests.
type JoinEventInput struct {
	PlayerName string `json:"player_name,omitempty"`
	Team       string `json:"team,omitempty"`
	GuestToken string `json:"guest_token,omitempty"`
}

// JoinEventResult echoes the event plus the guest token minted for
// unauthenticated joins.
type JoinEventResult struct {
	Message    string `json:"message"`
	Event      *Event `json:"event,omitempty"`
	GuestToken string `json:"guest_token,omitempty"`
}

// MyEvents groups the caller's event participation
type MyEvents struct {
	Joined []Event `json:"joined"`
	Hosted []Event `json:"hosted"`
}

// CreateEventInput is the body for hosting a new event
type CreateEventInput struct {
	Name       string   `json:"name"`
	Sport      string   `json:"sport"`
	Location   string   `json:"location"`
	Notes      string   `json:"notes,omitempty"`
	MaxPlayers int      `json:"max_players"`
	EventDate  string   `json:"event_date,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	SkillLevel string   `json:"skill_level,omitempty"`
}

func (c CreateEventInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Sport, validation.Required),
		validation.Field(&c.Location, validation.Required),
		validation.Field(&c.MaxPlayers, validation.Required, validation.Min(2)),
	)
}
