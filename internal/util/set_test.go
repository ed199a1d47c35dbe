package util

import (
	"testing"
)

func TestEmptySet(t *testing.T) {
	s := Set[string]{}
	if !s.IsEmpty() {
		t.Error("expected empty set")
	}
	if s.Contains("anything") {
		t.Error("empty set should contain nothing")
	}
}

func TestSetOf(t *testing.T) {
	s := SetOf("a", "b", "c")
	if s.IsEmpty() {
		t.Error("set with elements should not be empty")
	}
	if !s.Contains("a") || !s.Contains("b") || !s.Contains("c") {
		t.Error("set should contain all initial elements")
	}
	if s.Contains("d") {
		t.Error("set should not contain 'd'")
	}
}

func TestSetOfDuplicates(t *testing.T) {
	s := SetOf("a", "b", "a", "c", "b")
	if len(s) != 3 {
		t.Errorf("expected length 3 (duplicates removed), got %d", len(s))
	}
}

func TestAdd(t *testing.T) {
	s := Set[int]{}
	s.Add(1)
	s.Add(2)
	s.Add(1) // duplicate

	if len(s) != 2 {
		t.Errorf("expected length 2, got %d", len(s))
	}
	if !s.Contains(1) || !s.Contains(2) {
		t.Error("set should contain added elements")
	}
}
