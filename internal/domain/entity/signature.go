package entity

import "time"

// ElectronicSignature is a write-once attestation bound to an entity version
type ElectronicSignature struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	EntityVersion int64     `json:"entity_version"`
	Action        string    `json:"action"`
	Meaning       string    `json:"meaning"`
	SessionID     string    `json:"session_id,omitempty"`
	SignedAt      time.Time `json:"signed_at"`
}

// User is the subset of account data the workflow needs
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	LarkOpenID   string    `json:"lark_open_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
