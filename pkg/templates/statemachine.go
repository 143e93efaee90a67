package templates

import "fmt"

// Event is a lifecycle event applied to a template version
type Event string

const (
	EventCreate          Event = "create"
	EventEdit            Event = "edit"
	EventActivate        Event = "activate"
	EventArchive         Event = "archive"
	EventDelete          Event = "delete"
	EventCreateSuccessor Event = "create_successor"
)

// transitions is the complete lifecycle. Any (state, event) pair missing here
// is rejected. EventCreateSuccessor leaves the source active; the new draft
// is a separate template.
var transitions = map[Status]map[Event]Status{
	StatusNone: {
		EventCreate: StatusDraft,
	},
	StatusDraft: {
		EventEdit:     StatusDraft,
		EventActivate: StatusActive,
		EventDelete:   StatusNone,
	},
	StatusActive: {
		EventArchive:         StatusArchived,
		EventCreateSuccessor: StatusActive,
	},
	StatusArchived: {},
}

// Next returns the state reached by applying ev in from, or a typed error
// telling the operator what to do instead.
func Next(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, rejection(from, ev)
}

// CanTransition reports whether ev is allowed in from
func CanTransition(from Status, ev Event) bool {
	_, ok := transitions[from][ev]
	return ok
}

// AllowedEvents lists the events permitted in a state
func AllowedEvents(from Status) []Event {
	order := []Event{EventCreate, EventEdit, EventActivate, EventArchive, EventDelete, EventCreateSuccessor}
	var events []Event
	for _, ev := range order {
		if CanTransition(from, ev) {
			events = append(events, ev)
		}
	}
	return events
}

func rejection(from Status, ev Event) error {
	switch ev {
	case EventCreateSuccessor:
		return &Error{
			Kind:    KindInvalidSourceState,
			Message: fmt.Sprintf("new versions can only be created from the active template; this template is %s", describe(from)),
		}
	case EventEdit:
		if from == StatusActive {
			return &Error{
				Kind:    KindTemplateImmutable,
				Message: "template is active and read-only; create a new version to change it",
			}
		}
		return &Error{
			Kind:    KindTemplateImmutable,
			Message: fmt.Sprintf("template is %s and read-only; create a new version from the active template instead", describe(from)),
		}
	case EventActivate:
		return &Error{
			Kind:    KindTemplateImmutable,
			Message: fmt.Sprintf("template is %s; only drafts can be activated", describe(from)),
		}
	case EventDelete:
		return &Error{
			Kind:    KindTemplateImmutable,
			Message: fmt.Sprintf("template is %s and cannot be deleted; only drafts can be deleted", describe(from)),
		}
	case EventArchive:
		return &Error{
			Kind:    KindTemplateImmutable,
			Message: fmt.Sprintf("template is %s; only the active template can be archived", describe(from)),
		}
	default:
		return &Error{
			Kind:    KindTemplateImmutable,
			Message: fmt.Sprintf("%s is not allowed while the template is %s", ev, describe(from)),
		}
	}
}

func describe(s Status) string {
	if s == StatusNone {
		return "not created"
	}
	return string(s)
}
