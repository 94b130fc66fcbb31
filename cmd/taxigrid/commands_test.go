package main

import (
	"testing"

	"taxigrid/internal/geom"
)

func TestRouteArgs(t *testing.T) {
	pickup, dropoff, err := routeArgs([]string{"4", "-2.9"}, nil)
	if err != nil || pickup != geom.Pt(4, -2) || dropoff != nil {
		t.Fatalf("routeArgs = %v, %v, %v", pickup, dropoff, err)
	}

	pickup, dropoff, err = routeArgs([]string{"4", "5"}, []int{7, 8})
	if err != nil || dropoff == nil || *dropoff != geom.Pt(7, 8) || pickup != geom.Pt(4, 5) {
		t.Fatalf("routeArgs with dropoff = %v, %v, %v", pickup, dropoff, err)
	}

	tests := []struct {
		name    string
		args    []string
		dropoff []int
	}{
		{"dropoff on pickup", []string{"4", "5"}, []int{4, 5}},
		{"dropoff on truncated pickup", []string{"4.7", "5"}, []int{4, 5}},
		{"dropoff missing y", []string{"4", "5"}, []int{7}},
		{"bad coordinate", []string{"x", "5"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := routeArgs(tt.args, tt.dropoff); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
