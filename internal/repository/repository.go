// Package repository implements the bot store on top of gorm.
//
// Lookups that find nothing return (nil, nil), writes return wrapped errors.
package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// StartOfDay truncates t to midnight UTC. Daily limits reset at that point.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
