package model

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	Student UserRole = "student"
	Lister  UserRole = "lister"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string          `gorm:"size:100;not null" json:"name"`
	Email     string          `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string          `gorm:"size:100;not null" json:"-"`
	Role      UserRole        `gorm:"size:20;default:'student';index" json:"role"`
	Avatar    string          `gorm:"size:255" json:"avatar"`
	AvatarKey string          `gorm:"size:255" json:"-"`
	Disabled  bool            `gorm:"default:false" json:"disabled"`
	Onboarded bool            `gorm:"default:false" json:"onboarded"`
	Profile   *StudentProfile `gorm:"foreignKey:UserID;constraint:false" json:"profile,omitempty"`
	LastLogin *time.Time      `json:"lastLogin,omitempty"`
	LastSeen  *time.Time      `json:"lastSeen,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// StudentProfile holds the roommate-matching details of a student account.
type StudentProfile struct {
	BaseModel
	UserID         uint           `gorm:"uniqueIndex;not null" json:"userId"`
	University     string         `gorm:"size:150" json:"university"`
	Major          string         `gorm:"size:150" json:"major"`
	GraduationYear int            `json:"graduationYear,omitempty"`
	Bio            string         `gorm:"size:500" json:"bio"`
	BudgetMin      int            `json:"budgetMin"`
	BudgetMax      int            `json:"budgetMax"`
	MoveInDate     *time.Time     `json:"moveInDate,omitempty"`
	Lifestyle      datatypes.JSON `json:"lifestyle,omitempty"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}
