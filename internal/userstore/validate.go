package userstore

import "strings"

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

// ValidateRecord checks a record before it is written.
func ValidateRecord(record UserRecord) error {
	if err := validateUserID(record.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(record.RefreshToken) == "" {
		return ErrEmptyRefreshToken
	}
	return nil
}
