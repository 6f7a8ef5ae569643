package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Video is one clip served by the mini app feed. Location is the object
// key inside the media bucket.
type Video struct {
	bun.BaseModel `bun:"table:videos,alias:v"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull"`
	Location  string    `bun:"location,notnull,unique"`
	IsActive  bool      `bun:"is_active,notnull,default:true"`
	Watched   int64     `bun:"watched,notnull,default:0"`
	Clicked   int64     `bun:"clicked,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
