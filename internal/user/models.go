// Package user is the read side of the user directory. Accounts are
// provisioned elsewhere; this core only resolves keys to display fields
// for member listings.
package user

import (
	"time"

	id "tracker/pkg/domain"
)

// User is a directory record.
type User struct {
	Key           id.UserKey
	UserName      string
	DisplayName   string
	PreferredLang string
	CreatedAt     time.Time
}
