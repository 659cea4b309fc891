package interview

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/mockprep/internal/model"
)

// Step is one page of the selection wizard.
type Step int

// Wizard steps in order.
const (
	StepSpecialization Step = iota
	StepExperience
	StepTier
	StepTopic
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepSpecialization:
		return "Specialization"
	case StepExperience:
		return "Experience level"
	case StepTier:
		return "Company tier"
	case StepTopic:
		return "Topic"
	default:
		return "Confirm"
	}
}

var (
	ErrIncompleteSelection = errors.New("selection is incomplete")
	ErrUnknownOption       = errors.New("unknown option")
)

// Wizard walks the user through the four selection steps.
type Wizard struct {
	opts  model.Options
	steps []Step
	pos   int
	sel   model.Selection
}

// NewWizard creates a wizard. A known default specialization skips its step.
func NewWizard(opts model.Options, defaultSpecialization string) *Wizard {
	w := &Wizard{opts: opts}
	if defaultSpecialization != "" && hasOption(opts.Specializations, defaultSpecialization) {
		w.sel.Specialization = defaultSpecialization
	} else {
		w.steps = append(w.steps, StepSpecialization)
	}
	w.steps = append(w.steps, StepExperience, StepTier, StepTopic, StepConfirm)
	return w
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.steps[w.pos]
}

// Position returns the 1-based index of the current step and the step count.
func (w *Wizard) Position() (int, int) {
	return w.pos + 1, len(w.steps)
}

// Options returns the choices of the current step.
func (w *Wizard) Options() []model.Option {
	switch w.Step() {
	case StepSpecialization:
		return w.opts.Specializations
	case StepExperience:
		return w.opts.ExperienceLevels
	case StepTier:
		return w.opts.CompanyTiers
	case StepTopic:
		return w.opts.Topics
	default:
		return nil
	}
}

// Chosen returns the current value of the current step.
func (w *Wizard) Chosen() string {
	switch w.Step() {
	case StepSpecialization:
		return w.sel.Specialization
	case StepExperience:
		return w.sel.ExperienceLevel
	case StepTier:
		return w.sel.CompanyTier
	case StepTopic:
		return w.sel.Topic
	default:
		return ""
	}
}

// Choose records id for the current step and advances.
func (w *Wizard) Choose(id string) error {
	step := w.Step()
	if step == StepConfirm {
		return fmt.Errorf("%w: nothing to choose on %s", ErrUnknownOption, step)
	}
	if !hasOption(w.Options(), id) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownOption, id, step)
	}
	switch step {
	case StepSpecialization:
		w.sel.Specialization = id
	case StepExperience:
		w.sel.ExperienceLevel = id
	case StepTier:
		w.sel.CompanyTier = id
	case StepTopic:
		w.sel.Topic = id
	}
	w.pos++
	return nil
}

// Back returns to the previous step. It reports false on the first step.
func (w *Wizard) Back() bool {
	if w.pos == 0 {
		return false
	}
	w.pos--
	return true
}

// Done reports whether the confirm step is reached.
func (w *Wizard) Done() bool {
	return w.Step() == StepConfirm
}

// Selection returns the chosen parameters.
func (w *Wizard) Selection() (model.Selection, error) {
	if !w.sel.Complete() {
		return model.Selection{}, ErrIncompleteSelection
	}
	return w.sel, nil
}

// Describe returns the display name of an option id for a step.
func (w *Wizard) Describe(step Step, id string) string {
	var opts []model.Option
	switch step {
	case StepSpecialization:
		opts = w.opts.Specializations
	case StepExperience:
		opts = w.opts.ExperienceLevels
	case StepTier:
		opts = w.opts.CompanyTiers
	case StepTopic:
		opts = w.opts.Topics
	}
	for _, o := range opts {
		if o.ID == id {
			return o.Name
		}
	}
	return id
}

func hasOption(opts []model.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
