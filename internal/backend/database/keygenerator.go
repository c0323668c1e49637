package database

import "github.com/google/uuid"

func generateID() string {
	return uuid.NewString()
}

func ensureID(id *string) {
	if *id == "" {
		*id = generateID()
	}
}
