package dto

import (
	"time"

	domainuser "artisanchat/internal/domain/user"
)

type UserProfile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Skills         []string  `json:"skills,omitempty"`
	Location       string    `json:"location,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	Followers      int       `json:"followers"`
	Following      int       `json:"following"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserSummary is the compact shape embedded in lists and messages.
type UserSummary struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"full_name,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	IsOnline       bool   `json:"is_online"`
}

type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:             string(user.ID),
		Username:       user.Username,
		FullName:       user.FullName,
		Bio:            user.Bio,
		Skills:         append([]string(nil), user.Skills...),
		Location:       user.Location,
		ProfilePicture: user.ProfilePicture,
		Followers:      len(user.Followers),
		Following:      len(user.Following),
		IsOnline:       user.IsOnline,
		LastSeen:       user.LastSeen,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func MapUserSummary(user *domainuser.User) UserSummary {
	if user == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:             string(user.ID),
		Username:       user.Username,
		FullName:       user.FullName,
		ProfilePicture: user.ProfilePicture,
		IsOnline:       user.IsOnline,
	}
}

func NewAuthResponse(user *domainuser.User, token string) AuthResponse {
	return AuthResponse{
		User:  MapUserProfile(user),
		Token: token,
	}
}
