package session

import "neembleeat/internal/models"

// Tone is the colour family a badge is drawn in
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneMuted   Tone = "muted"
)

// Badge is a short status label
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

var prepBadges = map[models.PrepStatus]Badge{
	models.PrepStatusQueued:     {Label: "Queued", Tone: ToneNeutral},
	models.PrepStatusInProgress: {Label: "Preparing", Tone: ToneInfo},
	models.PrepStatusReady:      {Label: "Ready", Tone: ToneSuccess},
	models.PrepStatusServed:     {Label: "Served", Tone: ToneMuted},
	models.PrepStatusCancelled:  {Label: "Cancelled", Tone: ToneDanger},
}

var sessionBadges = map[models.SessionStatus]Badge{
	models.SessionStatusActive:    {Label: "Open", Tone: ToneSuccess},
	models.SessionStatusNeedsBill: {Label: "Bill requested", Tone: ToneWarning},
	models.SessionStatusClosed:    {Label: "Closed", Tone: ToneMuted},
	models.SessionStatusCancelled: {Label: "Cancelled", Tone: ToneDanger},
}

// PrepBadge returns the badge for an order status
func PrepBadge(s models.PrepStatus) Badge {
	if b, ok := prepBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Tone: ToneNeutral}
}

// StatusBadge returns the badge for a session status
func StatusBadge(s models.SessionStatus) Badge {
	if b, ok := sessionBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Tone: ToneNeutral}
}
