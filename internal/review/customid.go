package review

import (
	"fmt"
	"strings"

	"github.com/gatewarden/gatewarden/internal/domain"
)

// Component custom IDs are versioned so a deployed card stays parseable
// across releases. Decision IDs carry the application ID, never the
// applicant, so stale cards cannot act on the wrong row.
const customIDVersion = "v1"

// DecideCustomID builds the component ID for a decision button.
func DecideCustomID(action domain.DecisionAction, appID string) string {
	return fmt.Sprintf("%s:decide:%s:app%s", customIDVersion, action, appID)
}

// RejectModalCustomID builds the ID for the rejection-reason modal.
func RejectModalCustomID(appID string) string {
	return fmt.Sprintf("%s:modal:reject:app%s", customIDVersion, appID)
}

// AvatarViewSrcCustomID builds the ID for the avatar source button.
func AvatarViewSrcCustomID(appID string) string {
	return fmt.Sprintf("%s:avatar:viewsrc:app%s", customIDVersion, appID)
}

// AvatarConfirmCustomID builds the ID for the age-confirmation button shown
// before a flagged avatar's source link is revealed.
func AvatarConfirmCustomID(appID string) string {
	return fmt.Sprintf("%s:avatar:confirm18:app%s", customIDVersion, appID)
}

// ParseDecide extracts the action and application ID from a decision button
// ID. ok is false when the ID is not a decision ID of a known action.
func ParseDecide(customID string) (action domain.DecisionAction, appID string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 4 || parts[0] != customIDVersion || parts[1] != "decide" {
		return "", "", false
	}
	appID, ok = strings.CutPrefix(parts[3], "app")
	if !ok || appID == "" {
		return "", "", false
	}
	switch domain.DecisionAction(parts[2]) {
	case domain.ActionApprove, domain.ActionReject, domain.ActionNeedInfo, domain.ActionKick:
		return domain.DecisionAction(parts[2]), appID, true
	}
	return "", "", false
}

// ParseRejectModal extracts the application ID from a rejection modal ID.
func ParseRejectModal(customID string) (appID string, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDVersion+":modal:reject:app")
	if !found || rest == "" || strings.Contains(rest, ":") {
		return "", false
	}
	return rest, true
}

// ParseAvatarViewSrc extracts the application ID from a source button ID.
func ParseAvatarViewSrc(customID string) (appID string, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDVersion+":avatar:viewsrc:app")
	if !found || rest == "" || strings.Contains(rest, ":") {
		return "", false
	}
	return rest, true
}

// ParseAvatarConfirm extracts the application ID from an age-confirmation ID.
func ParseAvatarConfirm(customID string) (appID string, ok bool) {
	rest, found := strings.CutPrefix(customID, customIDVersion+":avatar:confirm18:app")
	if !found || rest == "" || strings.Contains(rest, ":") {
		return "", false
	}
	return rest, true
}
