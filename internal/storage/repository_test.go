package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func decimals(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestMedianOddCount(t *testing.T) {
	got := Median(decimals(100, 200, 300))
	if !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("median of [100,200,300] should be 200, got %s", got)
	}
}

func TestMedianEvenCount(t *testing.T) {
	got := Median(decimals(100, 200, 300, 400))
	if !got.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("median of [100,200,300,400] should be 250, got %s", got)
	}
}

func TestMedianUnsortedInput(t *testing.T) {
	input := decimals(300, 100, 200)
	got := Median(input)
	if !got.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("median must sort its input, got %s", got)
	}
	if !input[0].Equal(decimal.NewFromInt(300)) {
		t.Fatal("median must not mutate its input")
	}
}

func TestMedianSingleSample(t *testing.T) {
	got := Median(decimals(742))
	if !got.Equal(decimal.NewFromInt(742)) {
		t.Fatalf("median of one sample is that sample, got %s", got)
	}
}

func TestTravelMonth(t *testing.T) {
	date := time.Date(2026, 11, 12, 23, 59, 0, 0, time.UTC)
	if got := TravelMonth(date); got != "2026-11" {
		t.Fatalf("expected 2026-11, got %s", got)
	}
}
