package errors

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ConvergenceWarning reports that an iterative solver stopped on its
// iteration budget instead of its tolerance. It is a warning, not a hard
// failure: the fitted model is usable but may be underconverged.
type ConvergenceWarning struct {
	ModelName  string
	Iterations int
	Message    string
}

// NewConvergenceWarning returns a ConvergenceWarning for the given model.
func NewConvergenceWarning(modelName string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{ModelName: modelName, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s: %s: convergence warning after %d iterations: %s",
		prefix, w.ModelName, w.Iterations, w.Message)
}

// warnHandler receives non-fatal warnings. Defaults to a zerolog console
// writer on stderr so library users see warnings without any setup.
var warnHandler atomic.Value

func init() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	warnHandler.Store(func(err error) {
		logger.Warn().Msg(err.Error())
	})
}

// SetWarnHandler replaces the destination for warnings emitted through Warn.
// Passing nil silences warnings.
func SetWarnHandler(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	warnHandler.Store(fn)
}

// Warn reports a non-fatal condition, such as a ConvergenceWarning, without
// interrupting the caller. Nil errors are ignored.
func Warn(err error) {
	if err == nil {
		return
	}
	warnHandler.Load().(func(error))(err)
}

// CheckScalar validates that value is a usable float. It returns a warning
// error when value is NaN or infinite, tagged with the iteration at which
// the instability appeared.
func CheckScalar(name string, value float64, iteration int) error {
	switch {
	case math.IsNaN(value):
		return Newf("%s: numerical instability: %s is NaN at iteration %d", prefix, name, iteration)
	case math.IsInf(value, 0):
		return Newf("%s: numerical instability: %s is infinite at iteration %d", prefix, name, iteration)
	default:
		return nil
	}
}
