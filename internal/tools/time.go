package tools

import (
	"context"
	"fmt"
	"time"
)

// timeInput carries the optional IANA zone name for the clock tool.
type timeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name such as Europe/Berlin. Defaults to UTC."`
}

// RegisterTime adds the wall-clock capability. Pure and side-effect free,
// so it is always offered regardless of linked accounts.
func RegisterTime(r *Registry, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	Add(r, "get_current_time", "Get the current date and time, optionally in a specific timezone.", func(ctx context.Context, in timeInput) (string, error) {
		loc := time.UTC
		if in.Timezone != "" {
			parsed, err := time.LoadLocation(in.Timezone)
			if err != nil {
				return "", fmt.Errorf("unknown timezone %q: %w", in.Timezone, err)
			}
			loc = parsed
		}
		return now().In(loc).Format("Monday, 2 January 2006 15:04:05 MST"), nil
	})
}
