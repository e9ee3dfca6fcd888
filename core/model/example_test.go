package model_test

import (
	"fmt"

	"github.com/airsift/airsift/core/model"
)

// ExampleStateManager demonstrates fitted-state tracking.
func ExampleStateManager() {
	state := model.NewStateManager()

	fmt.Printf("Initially fitted: %t\n", state.IsFitted())

	state.SetFitted()
	state.SetDimensions(3, 150)
	fmt.Printf("After SetFitted: %t\n", state.IsFitted())
	fmt.Printf("Features: %d, samples: %d\n", state.NFeatures(), state.NSamples())

	state.Reset()
	fmt.Printf("After Reset: %t\n", state.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// Features: 3, samples: 150
	// After Reset: false
}

// ExampleStateManager_guard shows the fit-before-predict guard the
// estimators use.
func ExampleStateManager_guard() {
	type MyModel struct {
		State *model.StateManager
	}
	m := &MyModel{State: model.NewStateManager()}

	if !m.State.IsFitted() {
		fmt.Println("train the model before predicting")
	}

	m.State.SetFitted()
	if m.State.IsFitted() {
		fmt.Println("ready to predict")
	}

	// Output: train the model before predicting
	// ready to predict
}
