package models

// User document statuses.
const (
	StatusActive = "Active"
)

// Document field names shared by the orchestration layer and the stores.
const (
	FieldUserID      = "user_id"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhoneNumber = "phoneNumber"
	FieldPassword    = "password"
	FieldPreferences = "preferences"
	FieldStatus      = "status"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// Preferences holds per-user settings stored with the profile document.
type Preferences struct {
	Language      string
	Notifications bool
}

// DefaultPreferences are assigned to every newly registered user.
func DefaultPreferences() Preferences {
	return Preferences{Language: "English", Notifications: true}
}

// Map renders preferences as a nested document value.
func (p Preferences) Map() map[string]any {
	return map[string]any{
		"language":      p.Language,
		"notifications": p.Notifications,
	}
}

// User is the extended profile persisted in the document store, keyed by
// the identity provider's id.
type User struct {
	UserID      string
	Name        string
	Email       string
	PhoneNumber string
	Password    string
	Preferences Preferences
	Status      string
}

// Fields converts the user into a schemaless document body. Timestamps are
// left to the caller so each store can assign its own server time.
func (u User) Fields() map[string]any {
	return map[string]any{
		FieldUserID:      u.UserID,
		FieldName:        u.Name,
		FieldEmail:       u.Email,
		FieldPhoneNumber: u.PhoneNumber,
		FieldPassword:    u.Password,
		FieldPreferences: u.Preferences.Map(),
		FieldStatus:      u.Status,
	}
}
