package urlparser

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidItemId = errors.New("invalid itemId, must be uuid")

// ParseItemId validates a cart item id taken from /cart/items/{itemId}
// and returns it in canonical lower-case form.
func ParseItemId(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidItemId
	}

	return id.String(), nil
}
