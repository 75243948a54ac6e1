// README: Common identifier type used across modules.
package types

import (
	"encoding/hex"

	"github.com/google/uuid"
)

type ID string

// NewID returns a random identifier in the 32-char hex form stored in the database.
func NewID() ID {
	u := uuid.New()
	return ID(hex.EncodeToString(u[:]))
}

func (id ID) String() string { return string(id) }
