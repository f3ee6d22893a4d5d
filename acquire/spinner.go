package acquire

import "github.com/pterm/pterm"

// Spinner is a terminal progress indicator.
type Spinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

// SpinnerFactory starts a spinner showing text.
type SpinnerFactory func(text string) (Spinner, error)

// PtermSpinner starts a pterm spinner that is removed from the terminal when stopped.
var PtermSpinner SpinnerFactory = func(text string) (Spinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(true).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}
