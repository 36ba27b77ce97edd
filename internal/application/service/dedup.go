package service

import "strings"

// IsRepeat reports whether content repeats the last emitted content.
func IsRepeat(content, last string) bool {
	return strings.TrimSpace(content) == strings.TrimSpace(last)
}
