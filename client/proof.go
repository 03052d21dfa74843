package client

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const MaxProofSize = 5 << 20

var (
	ErrNotAnImage    = errors.New("please choose an image file")
	ErrProofTooLarge = errors.New("file is larger than 5MB")
)

// ProofFile is a payment proof picked by the customer.
type ProofFile struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ValidateProof checks what can be checked without the network. The
// server sniffs the bytes again.
func ValidateProof(f ProofFile) error {
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return ErrNotAnImage
	}
	if f.Size > MaxProofSize {
		return fmt.Errorf("%w (%d bytes)", ErrProofTooLarge, f.Size)
	}
	return nil
}

// Countdown returns the time left and its label: "MM:SS", "HH:MM:SS" once
// an hour or more is left, or "Expired".
func Countdown(expiresAt, now time.Time) (time.Duration, string) {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0, "Expired"
	}
	secs := int(remaining / time.Second)
	if secs >= 3600 {
		return remaining, fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
	}
	return remaining, fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// ProofUploadAllowed is false once the window has closed.
func ProofUploadAllowed(expiresAt, now time.Time) bool {
	return now.Before(expiresAt)
}
