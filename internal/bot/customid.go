// Package bot wires platform gateway interactions to the intake and
// decision services. Every handler acknowledges within the interaction
// deadline and reports failures ephemerally to the clicking user.
package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Intake component IDs share the version prefix with the decision card IDs
// so one dispatcher can route both families.
const customIDVersion = "v1"

// StartCustomID is the ID on the gate message's start button and, with a
// page suffix, on the per-page continue buttons.
func StartCustomID(page int) string {
	if page <= 0 {
		return customIDVersion + ":start"
	}
	return fmt.Sprintf("%s:start:p%d", customIDVersion, page)
}

// PageModalCustomID builds the ID of the intake modal for one page.
func PageModalCustomID(page int) string {
	return fmt.Sprintf("%s:modal:p%d", customIDVersion, page)
}

// QuestionCustomID builds the ID of one text input, keyed by catalog index.
func QuestionCustomID(qIndex int) string {
	return fmt.Sprintf("%s:q:%d", customIDVersion, qIndex)
}

// DoneCustomID is the dismiss button on the submission confirmation.
func DoneCustomID() string {
	return customIDVersion + ":done"
}

// ParseStart extracts the page index from a start or continue button ID.
func ParseStart(customID string) (page int, ok bool) {
	if customID == customIDVersion+":start" {
		return 0, true
	}
	rest, found := strings.CutPrefix(customID, customIDVersion+":start:p")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParsePageModal extracts the page index from an intake modal ID.
func ParsePageModal(customID string) (page int, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDVersion+":modal:p")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseQuestion extracts the catalog index from a text input ID.
func ParseQuestion(customID string) (qIndex int, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDVersion+":q:")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
