package utils

import (
	"errors"
	"testing"

	"github.com/vnkhanh/comuni-server/apperr"
)

type sampleInput struct {
	Title     string `json:"title" validate:"notblank,max=10"`
	StartDate string `json:"start_date" validate:"required,ymd"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndDate   string `json:"end_date" validate:"omitempty,ymd"`
}

func TestValidateStructFieldMessages(t *testing.T) {
	cases := []struct {
		name   string
		in     sampleInput
		field  string
		reason string
	}{
		{"blank title", sampleInput{Title: "   ", StartDate: "2025-07-10", StartTime: "07:00"}, "title", "is required"},
		{"long title", sampleInput{Title: "abcdefghijk", StartDate: "2025-07-10", StartTime: "07:00"}, "title", "must be at most 10 characters"},
		{"bad month", sampleInput{Title: "x", StartDate: "2025-13-01", StartTime: "07:00"}, "start_date", "must be a date in YYYY-MM-DD format"},
		{"bad clock", sampleInput{Title: "x", StartDate: "2025-07-10", StartTime: "7:00"}, "start_time", "must be a time in HH:mm format"},
		{"bad end", sampleInput{Title: "x", StartDate: "2025-07-10", StartTime: "07:00", EndDate: "tomorrow"}, "end_date", "must be a date in YYYY-MM-DD format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct("test.op", tc.in)
			var ae *apperr.Error
			if !errors.As(err, &ae) {
				t.Fatalf("expected *apperr.Error, got %v", err)
			}
			if ae.Kind != apperr.KindValidation || ae.Field != tc.field || ae.Reason != tc.reason {
				t.Fatalf("got %+v, want field %q reason %q", ae, tc.field, tc.reason)
			}
		})
	}
}

func TestValidateStructOK(t *testing.T) {
	in := sampleInput{Title: "Picnic", StartDate: "2025-07-10", StartTime: "07:00"}
	if err := ValidateStruct("test.op", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
