package directory

import "time"

// Profile is the public face of a portal account: the fields safe to show
// to other users next to a message or conversation row. Account management
// lives upstream; this domain is a read-only lookup.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Avatar    *string   `db:"avatar" json:"avatar,omitempty"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
