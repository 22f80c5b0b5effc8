package locations

import "fmt"

// Record is a place resolved by the geocoder. Latitude and Longitude are kept
// exactly as the geocoder returned them so they survive a save/load cycle
// without float formatting drift.
type Record struct {
	DisplayName string `json:"display_name"`
	Latitude    string `json:"lat"`
	Longitude   string `json:"lon"`
}

func (r Record) validate() error {
	if r.Latitude == "" || r.Longitude == "" {
		return fmt.Errorf("record %q has no coordinates", r.DisplayName)
	}
	return nil
}

// Status tells apart the three states a cache key can be in.
type Status int

const (
	// Missing means the key was never looked up.
	Missing Status = iota
	// Negative means the key was looked up and the geocoder found nothing.
	Negative
	// Found means the key resolved to a Record.
	Found
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Negative:
		return "negative"
	case Found:
		return "found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Entry is the result of Store.Get. Record is only meaningful when Status is Found.
type Entry struct {
	Status Status
	Record Record
}
