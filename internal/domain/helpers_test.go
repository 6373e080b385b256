package domain

import (
	"bytes"
	"io"
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testReference() *ReferenceData {
	return NewReferenceData(
		[]CountyRef{
			{FIPS: "06037", State: "CA", Name: "Los Angeles County", Population: 10039107},
			{FIPS: "48201", State: "TX", Name: "Harris County", Population: 4713325},
		},
		[]StateRef{
			{FIPS: "06", Abbr: "CA", Name: "California"},
			{FIPS: "12", Abbr: "FL", Name: "Florida"},
			{FIPS: "48", Abbr: "TX", Name: "Texas"},
		},
	)
}
