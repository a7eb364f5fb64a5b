package diag

import "testing"

func TestWarningLevelFiltering(t *testing.T) {
	s := NewSink()
	s.WarningLevel = 2
	s.Warnf(1, "a.jc", 3, 1, 100, "unreachable code")
	s.Warnf(3, "a.jc", 4, 1, 101, "should be dropped")
	if s.WarningCount() != 1 {
		t.Fatalf("expected 1 warning queued, got %d", s.WarningCount())
	}
}

func TestFormatDefaultAndMS(t *testing.T) {
	s := NewSink()
	s.Errorf(ClassType, "a.jc", 7, 3, 42, "incompatible type")
	def := s.Text()
	if def != "Error 42: incompatible type in a.jc (3,7)\n" {
		t.Fatalf("unexpected default format: %q", def)
	}
	s2 := NewSink()
	s2.Format = FormatMS
	s2.Errorf(ClassType, "a.jc", 7, 3, 42, "incompatible type")
	ms := s2.Text()
	if ms != "a.jc(7): Error 42: incompatible type\n" {
		t.Fatalf("unexpected ms format: %q", ms)
	}
}

func TestErrorsNeverFiltered(t *testing.T) {
	s := NewSink()
	s.WarningLevel = 0
	s.Errorf(ClassSyntactic, "a.jc", 1, 1, 1, "unexpected token")
	if s.ErrorCount() != 1 {
		t.Fatal("errors must not be filtered by warning level")
	}
}
