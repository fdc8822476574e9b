package enums

import "fmt"

// BookCover describes the allowed values for the `cover` column on books.
type BookCover string

const (
	BookCoverSoft BookCover = "SOFT"
	BookCoverHard BookCover = "HARD"
)

var validBookCovers = []BookCover{
	BookCoverSoft,
	BookCoverHard,
}

// IsValid reports whether the value matches the canonical cover enum.
func (c BookCover) IsValid() bool {
	for _, candidate := range validBookCovers {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseBookCover converts the raw string to BookCover.
func ParseBookCover(value string) (BookCover, error) {
	for _, candidate := range validBookCovers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book cover %q", value)
}
