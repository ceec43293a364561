// Package model defines the core data types shared by the campaignsync
// orchestration layer: job families, job records, status vocabularies and the
// wire envelope exchanged with the remote worker gateway.
package model

import (
	"fmt"
	"strings"
)

// JobFamily identifies one of the campaign kinds. Each family has its own
// status vocabulary and configuration shape but plays the same orchestration
// role.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobFamily string

const (
	// FamilyNumberCheck is the bulk phone-number verification family.
	FamilyNumberCheck JobFamily = "number_check"
	// FamilyWarmer is the multi-account warm-up chatting family.
	FamilyWarmer JobFamily = "warmer"
	// FamilyBlast is the bulk message blasting family.
	FamilyBlast JobFamily = "blast"
)

// Families returns all job families in a stable order.
func Families() []JobFamily {
	return []JobFamily{FamilyNumberCheck, FamilyWarmer, FamilyBlast}
}

// Valid returns true if the JobFamily is one of the known families.
func (f JobFamily) Valid() bool {
	return f == FamilyNumberCheck || f == FamilyWarmer || f == FamilyBlast
}

// UnmarshalText implements encoding.TextUnmarshaler so families can be parsed
// from env vars and URL parameters.
func (f *JobFamily) UnmarshalText(text []byte) error {
	v := JobFamily(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobFamily: %q", string(text))
	}
	*f = v
	return nil
}

// String implements fmt.Stringer.
func (f JobFamily) String() string {
	return string(f)
}
