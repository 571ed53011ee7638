package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinMembersLimit = 10
	MaxMembersLimit = 3200

	maxCircleNameLen = 140
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Circle is a membership-gated group that hosts rides.
type Circle struct {
	ID           uuid.UUID
	Slug         string
	Name         string
	About        string
	IsPublic     bool
	IsLimited    bool
	MembersLimit int
	Verified     bool
	RidesOffered int
	RidesTaken   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRoomFor reports whether a circle with activeMembers members can admit one more.
func (c *Circle) HasRoomFor(activeMembers int) bool {
	if !c.IsLimited {
		return true
	}
	return activeMembers < c.MembersLimit
}

// ValidateMembersLimit checks that isLimited and membersLimit agree.
func ValidateMembersLimit(isLimited bool, membersLimit int) error {
	if !isLimited {
		if membersLimit != 0 {
			return ErrInvalidMembersLimit
		}
		return nil
	}
	if membersLimit < MinMembersLimit || membersLimit > MaxMembersLimit {
		return ErrInvalidMembersLimit
	}
	return nil
}

// ValidateSlug checks a circle slug.
func ValidateSlug(slug string) error {
	if len(slug) == 0 || len(slug) > 40 || !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// ValidateCircleName checks a circle display name.
func ValidateCircleName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > maxCircleNameLen {
		return ErrInvalidName
	}
	return nil
}
