package errors_test

import (
	"errors"
	"math"
	"testing"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

func TestConvergenceWarningMessage(t *testing.T) {
	w := airsiftErrors.NewConvergenceWarning("LinearSVC", 1000, "maximum number of iterations reached")

	want := "airsift: LinearSVC: convergence warning after 1000 iterations: maximum number of iterations reached"
	if w.Error() != want {
		t.Errorf("expected %q, got %q", want, w.Error())
	}
}

func TestWarnHandler(t *testing.T) {
	var captured error
	airsiftErrors.SetWarnHandler(func(err error) { captured = err })
	defer airsiftErrors.SetWarnHandler(nil)

	w := airsiftErrors.NewConvergenceWarning("SGD", 50, "stopped early")
	airsiftErrors.Warn(w)

	if captured == nil {
		t.Fatal("handler did not receive the warning")
	}

	var cw *airsiftErrors.ConvergenceWarning
	if !errors.As(captured, &cw) {
		t.Fatal("captured warning is not a ConvergenceWarning")
	}
	if cw.Iterations != 50 {
		t.Errorf("expected 50 iterations, got %d", cw.Iterations)
	}

	// Nil warnings are ignored.
	captured = nil
	airsiftErrors.Warn(nil)
	if captured != nil {
		t.Error("nil warning should not reach the handler")
	}
}

func TestCheckScalar(t *testing.T) {
	if err := airsiftErrors.CheckScalar("weight", 1.5, 10); err != nil {
		t.Errorf("finite value should pass, got %v", err)
	}
	if err := airsiftErrors.CheckScalar("weight", math.NaN(), 10); err == nil {
		t.Error("NaN should be reported")
	}
	if err := airsiftErrors.CheckScalar("gradient", math.Inf(1), 3); err == nil {
		t.Error("infinity should be reported")
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	fn := func() (err error) {
		defer airsiftErrors.Recover(&err, "Tester.Explode")
		panic("boom")
	}

	err := fn()
	if err == nil {
		t.Fatal("expected panic to become an error")
	}
	want := "airsift: Tester.Explode: panic recovered: boom"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
