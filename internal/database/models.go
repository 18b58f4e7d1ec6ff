package database

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the persisted form of an account.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Email        string    `bun:"email,notnull,unique,type:varchar(100)"`
	Username     string    `bun:"username,notnull,unique,type:varchar(50)"`
	PasswordHash string    `bun:"password_hash,notnull,type:varchar(255)"`
	IsActive     bool      `bun:"is_active,notnull,default:true"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// Task is the persisted form of a to-do item. UserID references users.id.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Title       string     `bun:"title,notnull,type:varchar(100)"`
	Description *string    `bun:"description,type:varchar(500)"`
	Completed   bool       `bun:"completed,notnull,default:false"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   *time.Time `bun:"updated_at"`
	UserID      int64      `bun:"user_id,notnull"`
}

// OneTimeCode is a password reset code. Email is deliberately not a foreign
// key to users: codes are keyed by the address the client supplied.
type OneTimeCode struct {
	bun.BaseModel `bun:"table:one_time_codes,alias:otc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Email     string    `bun:"email,notnull,type:varchar(100)"`
	Code      string    `bun:"code,notnull,type:varchar(6)"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	Used      bool      `bun:"used,notnull,default:false"`
}
