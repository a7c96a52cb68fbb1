package models

import "time"

// Social providers supported by the identity service.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
	ProviderKakao    = "kakao"
)

// KnownProvider reports whether the provider name is one we issue
// authorization URLs for.
func KnownProvider(provider string) bool {
	switch provider {
	case ProviderGoogle, ProviderFacebook, ProviderKakao:
		return true
	}
	return false
}

// SocialLink associates a user with an external provider identity.
type SocialLink struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	ProviderEmail  string
	LinkedAt       time.Time
}
