package models

import "time"

// SocialLinks are optional profile URLs.
type SocialLinks struct {
	Twitter  string `json:"twitter,omitempty" bson:"twitter,omitempty" validate:"omitempty,url"`
	LinkedIn string `json:"linkedin,omitempty" bson:"linkedin,omitempty" validate:"omitempty,url"`
	GitHub   string `json:"github,omitempty" bson:"github,omitempty" validate:"omitempty,url"`
}

// Badge is awarded once per user.
type Badge struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Icon        string    `json:"icon" bson:"icon"`
	AwardedAt   time.Time `json:"awardedAt" bson:"awardedAt"`
}

// Profile is one-to-one with User.
type Profile struct {
	UserID      string         `json:"userId" bson:"_id"`
	Bio         string         `json:"bio,omitempty" bson:"bio,omitempty"`
	Location    string         `json:"location,omitempty" bson:"location,omitempty"`
	Website     string         `json:"website,omitempty" bson:"website,omitempty"`
	SocialLinks SocialLinks    `json:"socialLinks" bson:"socialLinks"`
	Badges      []Badge        `json:"badges" bson:"badges"`
	Extra       map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// HasBadge reports whether id was already awarded.
func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// UserStats holds lifetime counters for a user.
type UserStats struct {
	UserID           string     `json:"userId" bson:"_id"`
	QuizzesCreated   int64      `json:"quizzesCreated" bson:"quizzesCreated"`
	QuizzesCompleted int64      `json:"quizzesCompleted" bson:"quizzesCompleted"`
	TotalScore       int64      `json:"totalScore" bson:"totalScore"`
	TotalQuestions   int64      `json:"totalQuestions" bson:"totalQuestions"`
	TotalTimeSpent   int64      `json:"totalTimeSpent" bson:"totalTimeSpent"`
	Points           int64      `json:"points" bson:"points"`
	BadgesEarned     int64      `json:"badgesEarned" bson:"badgesEarned"`
	LastActivity     *time.Time `json:"lastActivity,omitempty" bson:"lastActivity,omitempty"`
}

// Accuracy is the lifetime share of correct answers, as a percentage.
func (s *UserStats) Accuracy() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.TotalScore) * 100 / float64(s.TotalQuestions)
}

// StatsDelta is applied atomically to a UserStats document.
type StatsDelta struct {
	QuizzesCreated   int64
	QuizzesCompleted int64
	TotalScore       int64
	TotalQuestions   int64
	TotalTimeSpent   int64
	Points           int64
	BadgesEarned     int64
}
