package api

// WidgetKind tags the widget variants the platform knows how to render.
type WidgetKind string

const (
	// WidgetOptions renders a picker over a fixed option list.
	WidgetOptions WidgetKind = "options"
	// WidgetDateTime renders a bounded date or number entry control.
	WidgetDateTime WidgetKind = "date_time"
	// WidgetConfirmation renders a summary with confirm/cancel actions.
	WidgetConfirmation WidgetKind = "confirmation"
)

// Continuation names the tool call the platform issues once the user answered
// a widget. BoundParameters must carry everything already known about the
// in-flight operation: re-invocation never loses state collected in earlier
// steps, and tellerd keeps no server-side progress record beyond what a
// prepare call stages.
type Continuation struct {
	// Tool is the tool name to invoke next.
	Tool string `json:"tool"`
	// BoundParameters are the arguments already collected.
	BoundParameters map[string]any `json:"bound_parameters"`
	// InputSlot is the argument name the user's answer is merged under.
	InputSlot string `json:"input_slot,omitempty"`
}

// Option is one selectable entry of an Options widget.
type Option struct {
	// Value is the machine value merged into the continuation's input slot.
	Value string `json:"value"`
	// Label is the short user-facing name.
	Label string `json:"label"`
	// Description adds user-facing detail below the label.
	Description string `json:"description,omitempty"`
}

// Widget is one tagged instruction telling the platform to collect a piece of
// input (or a confirmation) before the logical operation continues.
type Widget struct {
	// Kind selects the variant; only the fields of that variant are set.
	Kind WidgetKind `json:"kind"`
	// Prompt is the user-facing question for options and date_time widgets.
	Prompt string `json:"prompt,omitempty"`
	// Options populates an options widget.
	Options []Option `json:"options,omitempty"`
	// MinDate/MaxDate bound a date_time widget (ISO 8601 dates, inclusive).
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
	// Submit is the continuation for options and date_time widgets.
	Submit *Continuation `json:"submit,omitempty"`
	// Summary is the rendered operation summary of a confirmation widget.
	Summary string `json:"summary,omitempty"`
	// OnConfirm/OnCancel are the confirmation widget's two continuations.
	OnConfirm *Continuation `json:"on_confirm,omitempty"`
	OnCancel  *Continuation `json:"on_cancel,omitempty"`
}

// NewContinuation builds a continuation with a defensive copy of bound.
func NewContinuation(tool string, bound map[string]any, inputSlot string) *Continuation {
	return &Continuation{
		Tool:            tool,
		BoundParameters: cloneParams(bound),
		InputSlot:       inputSlot,
	}
}

// OptionsWidget builds a picker whose answer is merged under the
// continuation's input slot.
func OptionsWidget(prompt string, options []Option, submit *Continuation) *Widget {
	return &Widget{
		Kind:    WidgetOptions,
		Prompt:  prompt,
		Options: append([]Option(nil), options...),
		Submit:  submit,
	}
}

// DateTimeWidget builds a bounded date picker.
func DateTimeWidget(prompt, minDate, maxDate string, submit *Continuation) *Widget {
	return &Widget{
		Kind:    WidgetDateTime,
		Prompt:  prompt,
		MinDate: minDate,
		MaxDate: maxDate,
		Submit:  submit,
	}
}

// ConfirmationWidget builds a confirm/cancel instruction around a summary.
func ConfirmationWidget(summary string, onConfirm, onCancel *Continuation) *Widget {
	return &Widget{
		Kind:      WidgetConfirmation,
		Summary:   summary,
		OnConfirm: onConfirm,
		OnCancel:  onCancel,
	}
}

func cloneParams(params map[string]any) map[string]any {
	cloned := make(map[string]any, len(params))
	for k, v := range params {
		cloned[k] = v
	}
	return cloned
}
