package handlers

import (
	"errors"

	"github.com/google/uuid"
)

var errInvalidUUID = errors.New("неверный формат UUID")

// parseUUIDString разбирает UUID из тела запроса.
func parseUUIDString(raw string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errInvalidUUID
	}
	return parsed, nil
}
