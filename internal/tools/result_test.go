package tools

import (
	"errors"
	"testing"
)

func TestResultConstructors(t *testing.T) {
	if r := NewResult("hi"); r.ForLLM != "hi" || r.IsError || r.Silent {
		t.Errorf("NewResult produced unexpected result: %+v", r)
	}
	if r := SilentResult("hi"); !r.Silent {
		t.Error("expected SilentResult to set Silent")
	}
	if r := ErrorResult("boom"); !r.IsError || r.ForLLM != "boom" {
		t.Errorf("ErrorResult produced unexpected result: %+v", r)
	}
	if r := UserResult("shown"); r.ForUser != "shown" || r.ForLLM != "shown" {
		t.Errorf("UserResult produced unexpected result: %+v", r)
	}
	if r := AsyncResult("running"); !r.Async {
		t.Error("expected AsyncResult to set Async")
	}
}

func TestResult_WithError(t *testing.T) {
	err := errors.New("boom")
	r := NewResult("msg").WithError(err)
	if r.Err != err {
		t.Errorf("expected WithError to set Err, got %v", r.Err)
	}
}
