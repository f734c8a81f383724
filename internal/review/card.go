// Package review renders the decision card for an application and
// reconciles it against the previously published message. Render is pure:
// it derives everything, including the advisory flags, from stored state
// and never re-runs side effects.
package review

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gatewarden/gatewarden/internal/domain"
)

const (
	summaryAnswerMax = 5
	answerTruncateAt = 180
	reasonTruncateAt = 200
	rejectReasonMax  = 300
)

// Status colors for the card accent.
const (
	colorSubmitted = 0x5865f2
	colorNeedsInfo = 0xf1c40f
	colorApproved  = 0x57f287
	colorRejected  = 0xed4245
	colorKicked    = 0x992d22
	colorDefault   = 0x2f3136
)

// ActionView is the latest review action prepared for display.
type ActionView struct {
	Action       domain.DecisionAction
	ModeratorID  string
	ModeratorTag string // resolved display handle, may be empty
	Reason       *string
	CreatedAt    time.Time
	Meta         domain.ActionMeta
}

// CardData is everything Render needs, already loaded.
type CardData struct {
	App        domain.Application
	UserTag    string
	AvatarURL  string
	Answers    []domain.AnswerRecord
	LastAction *ActionView
	Scan       *domain.AvatarScan
	// OpenThreadID is the open follow-up thread for the pair, empty when
	// none exists.
	OpenThreadID string
	Flags        []string
}

// Card is the display payload: one embed plus its button rows.
type Card struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Render produces the decision card payload for an application. Buttons are
// disabled when the status is terminal; Need Info is additionally disabled
// while a follow-up thread is open.
func Render(data CardData) Card {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Application #%s — %s", data.App.ID, data.UserTag),
		Color: statusColor(data.App.Status),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Submitted: %s • AppID: %s",
				formatTimestamp(firstTime(data.App.SubmittedAt, &data.App.CreatedAt), "f"), data.App.ID),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: data.AvatarURL}
	}

	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Summary", Value: summaryField(data.Answers)},
		&discordgo.MessageEmbedField{Name: "Status", Value: statusField(data)},
	)

	if data.Scan != nil && data.Scan.Flagged {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Avatar Risk",
			Value: riskField(data.Scan),
		})
	}
	if len(data.Flags) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Flags",
			Value: strings.Join(data.Flags, "\n"),
		})
	}

	return Card{Embed: embed, Components: decisionComponents(data)}
}

// DeriveFlags computes the advisory flags for a card from stored metadata.
// Each condition is independently detectable; none is auto-repaired.
func DeriveFlags(last *ActionView, openThreadID string) []string {
	var flags []string
	if last == nil {
		return flags
	}
	if last.Meta.DMDelivered != nil && !*last.Meta.DMDelivered {
		flags = append(flags, "Applicant DM failed — follow up manually.")
	}
	if last.Action == domain.ActionKick && last.Meta.KickSucceeded != nil && !*last.Meta.KickSucceeded {
		flags = append(flags, "Kick failed — check permissions.")
	}
	if last.Meta.ThreadError != "" {
		flags = append(flags, "Need info thread creation failed previously.")
	}
	if last.Action == domain.ActionNeedInfo && openThreadID == "" {
		flags = append(flags, "Need Info requested but no open thread found.")
	}
	return flags
}

func summaryField(answers []domain.AnswerRecord) string {
	if len(answers) == 0 {
		return "- No responses recorded."
	}
	shown := answers
	if len(shown) > summaryAnswerMax {
		shown = shown[:summaryAnswerMax]
	}
	var lines []string
	for _, a := range shown {
		cleaned := strings.TrimSpace(collapseSpace(a.Answer))
		if cleaned == "" {
			cleaned = "(no response)"
		}
		lines = append(lines, fmt.Sprintf("- Q%d: %s", a.QIndex+1, truncate(cleaned, answerTruncateAt)))
	}
	return strings.Join(lines, "\n")
}

func statusField(data CardData) string {
	app := data.App
	action := data.LastAction

	actedAt := app.CreatedAt
	switch {
	case action != nil:
		actedAt = action.CreatedAt
	case app.ResolvedAt != nil:
		actedAt = *app.ResolvedAt
	case app.SubmittedAt != nil:
		actedAt = *app.SubmittedAt
	}
	when := formatTimestamp(&actedAt, "R")

	actor := "unknown reviewer"
	if action != nil && action.ModeratorTag != "" {
		actor = action.ModeratorTag
	} else if action != nil {
		actor = "<@" + action.ModeratorID + ">"
	} else if app.ResolverID != nil {
		actor = "<@" + *app.ResolverID + ">"
	}

	reason := ""
	if action != nil && action.Reason != nil {
		reason = *action.Reason
	} else if app.ResolutionReason != nil {
		reason = *app.ResolutionReason
	}

	switch app.Status {
	case domain.StatusSubmitted:
		return fmt.Sprintf("Pending review • Submitted %s", formatTimestamp(app.SubmittedAt, "f"))
	case domain.StatusNeedsInfo:
		lines := []string{fmt.Sprintf("Need info requested by %s • %s", actor, when)}
		if reason != "" {
			lines = append(lines, "Reason: "+truncate(reason, reasonTruncateAt))
		}
		if action != nil && action.Meta.ThreadURL != "" {
			lines = append(lines, "Thread: "+action.Meta.ThreadURL)
		}
		return strings.Join(lines, "\n")
	case domain.StatusApproved:
		base := fmt.Sprintf("Approved by %s • %s", actor, when)
		if reason != "" {
			return base + "\nNote: " + truncate(reason, reasonTruncateAt)
		}
		return base
	case domain.StatusRejected:
		dm := "✅"
		if action != nil && action.Meta.DMDelivered != nil && !*action.Meta.DMDelivered {
			dm = "❌"
		}
		base := fmt.Sprintf("Rejected by %s • %s • DM: %s", actor, when, dm)
		if reason != "" {
			return base + "\nReason: " + truncate(reason, rejectReasonMax)
		}
		return base
	case domain.StatusKicked:
		note := ""
		if action != nil && action.Meta.KickSucceeded != nil {
			if *action.Meta.KickSucceeded {
				note = " • Kick completed"
			} else {
				note = " • Kick failed"
			}
		}
		base := fmt.Sprintf("Kicked by %s • %s%s", actor, when, note)
		if reason != "" {
			return base + "\nReason: " + truncate(reason, reasonTruncateAt)
		}
		return base
	}
	return fmt.Sprintf("%s • %s", app.Status, when)
}

func riskField(scan *domain.AvatarScan) string {
	nsfw := "-"
	if scan.NSFWScore != nil {
		nsfw = fmt.Sprintf("%.2f", *scan.NSFWScore)
	}
	reason := scan.Reason
	switch reason {
	case "both":
		reason = "nsfw + edge"
	case "skin_edge":
		reason = "skin edge"
	}
	return fmt.Sprintf("Reason: %s\nNSFW ≈ %s • Edge ≈ %.2f", reason, nsfw, scan.SkinEdgeScore)
}

func decisionComponents(data CardData) []discordgo.MessageComponent {
	terminal := data.App.Status.Terminal()
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			CustomID: DecideCustomID(domain.ActionApprove, data.App.ID),
			Label:    "Approve",
			Style:    discordgo.SuccessButton,
			Disabled: terminal,
		},
		discordgo.Button{
			CustomID: DecideCustomID(domain.ActionReject, data.App.ID),
			Label:    "Reject",
			Style:    discordgo.DangerButton,
			Disabled: terminal,
		},
		discordgo.Button{
			CustomID: DecideCustomID(domain.ActionNeedInfo, data.App.ID),
			Label:    "Need Info",
			Style:    discordgo.SecondaryButton,
			Disabled: terminal || data.OpenThreadID != "",
		},
		discordgo.Button{
			CustomID: DecideCustomID(domain.ActionKick, data.App.ID),
			Label:    "Kick",
			Style:    discordgo.DangerButton,
			Disabled: terminal,
		},
	}}
	components := []discordgo.MessageComponent{row}

	if data.Scan != nil && data.Scan.Flagged {
		components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: AvatarViewSrcCustomID(data.App.ID),
				Label:    "View Source",
				Style:    discordgo.SecondaryButton,
			},
		}})
	}
	return components
}

func statusColor(s domain.Status) int {
	switch s {
	case domain.StatusApproved:
		return colorApproved
	case domain.StatusRejected:
		return colorRejected
	case domain.StatusKicked:
		return colorKicked
	case domain.StatusNeedsInfo:
		return colorNeedsInfo
	case domain.StatusSubmitted:
		return colorSubmitted
	}
	return colorDefault
}

// formatTimestamp renders a platform-native timestamp token
// ("f" full, "R" relative); unknown times render as "unknown".
func formatTimestamp(t *time.Time, style string) string {
	if t == nil || t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

func firstTime(candidates ...*time.Time) *time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}

var spaceRE = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRE.ReplaceAllString(s, " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
