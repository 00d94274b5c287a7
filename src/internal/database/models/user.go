package models

// User represents a user account
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"size:254;uniqueIndex;not null"`
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	FirstName    string `gorm:"size:150;not null"`
	LastName     string `gorm:"size:150;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	IsAdmin      bool   `gorm:"default:false"`
	Timestamps

	// Computed per viewer, not stored
	IsSubscribed bool `gorm:"-"`
}

// Follow subscribes the follower to the influencer's recipes
type Follow struct {
	ID           uint `gorm:"primaryKey"`
	FollowerID   uint `gorm:"not null;uniqueIndex:idx_follow_pair;check:chk_follows_not_self,follower_id <> influencer_id"`
	InfluencerID uint `gorm:"not null;uniqueIndex:idx_follow_pair;index"`
	Timestamps

	// Relations
	Follower   User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Influencer User `gorm:"foreignKey:InfluencerID;constraint:OnDelete:CASCADE"`
}
