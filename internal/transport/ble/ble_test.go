package ble

import (
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestUUIDsParse(t *testing.T) {
	for _, s := range []string{ServiceUUID, DataCharUUID, CommandCharUUID} {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			t.Fatalf("ParseUUID(%q) error = %v", s, err)
		}
		if got := u.String(); got != s {
			t.Errorf("UUID round trip = %q, want %q", got, s)
		}
	}
}
