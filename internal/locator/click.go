package locator

import (
	"errors"
	"fmt"
)

var ErrClickRejected = errors.New("every click mechanism failed")

type Mechanism int

const (
	MechanismNone Mechanism = iota
	MechanismScript
	MechanismPointer
	MechanismDispatch
	MechanismAncestor
)

func (m Mechanism) String() string {
	switch m {
	case MechanismScript:
		return "script"
	case MechanismPointer:
		return "pointer"
	case MechanismDispatch:
		return "dispatch"
	case MechanismAncestor:
		return "ancestor"
	default:
		return "none"
	}
}

// Click tries script click, pointer move and click, a synthetic event, and
// finally the nearest clickable ancestor. The first mechanism that does not
// error ends the cascade.
func Click(el Element) (Mechanism, error) {
	steps := []struct {
		mechanism Mechanism
		click     func() error
	}{
		{MechanismScript, el.ScriptClick},
		{MechanismPointer, el.PointerClick},
		{MechanismDispatch, el.DispatchClick},
		{MechanismAncestor, el.AncestorClick},
	}

	var errs []error
	for _, step := range steps {
		err := step.click()
		if err == nil {
			return step.mechanism, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", step.mechanism, err))
	}

	return MechanismNone, errors.Join(append([]error{ErrClickRejected}, errs...)...)
}
