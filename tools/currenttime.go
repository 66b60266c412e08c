package tools

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"
)

// CurrentTimeInput defines the input for the current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone such as Asia/Tokyo (default: UTC)"`
}

// CurrentTimeOutput defines the output of the current_time tool.
type CurrentTimeOutput struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Weekday  string `json:"weekday"`
	Unix     int64  `json:"unix"`
}

// CurrentTime returns the current_time tool. now defaults to time.Now.
func CurrentTime(now func() time.Time) *TypedTool[CurrentTimeInput, CurrentTimeOutput] {
	if now == nil {
		now = time.Now
	}
	return NewTool(
		"current_time",
		"Get the current date and time, optionally in a given time zone.",
		func(_ context.Context, in CurrentTimeInput) (CurrentTimeOutput, error) {
			name := in.Timezone
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return CurrentTimeOutput{}, fmt.Errorf("unknown time zone %q", name)
			}
			t := now().In(loc)
			return CurrentTimeOutput{
				Time:     t.Format(time.RFC3339),
				Timezone: loc.String(),
				Weekday:  t.Weekday().String(),
				Unix:     t.Unix(),
			}, nil
		},
	)
}

// Builtin returns the built-in tools. Web options apply to every web tool.
func Builtin(web bool, opts ...WebOption) []Tool {
	out := []Tool{CurrentTime(nil)}
	if web {
		out = append(out, WebSearch(opts...), WebFetch(opts...), Wikipedia(opts...))
	}
	return out
}
