package dialog

import "strings"

// TurnKind distinguishes the request types the voice platform delivers.
type TurnKind string

const (
	TurnLaunch        TurnKind = "launch"
	TurnIntent        TurnKind = "intent"
	TurnSessionEnded  TurnKind = "session_ended"
	TurnSkillEnabled  TurnKind = "skill_enabled"
	TurnSkillDisabled TurnKind = "skill_disabled"
)

// Intent names understood by the dialog router.
const (
	IntentSetCity                    = "SetCityIntent"
	IntentSetStopNumber              = "SetStopNumberIntent"
	IntentGetArrivals                = "GetArrivalsIntent"
	IntentSetRouteFilter             = "SetRouteFilterIntent"
	IntentGetCity                    = "GetCityIntent"
	IntentGetStopNumber              = "GetStopNumberIntent"
	IntentEnableClockTime            = "EnableClockTimeIntent"
	IntentDisableClockTime           = "DisableClockTimeIntent"
	IntentEnableExperimentalRegions  = "EnableExperimentalRegionsIntent"
	IntentDisableExperimentalRegions = "DisableExperimentalRegionsIntent"
	IntentGetSupportedRegions        = "GetSupportedRegionsIntent"
	IntentYes                        = "AMAZON.YesIntent"
	IntentNo                         = "AMAZON.NoIntent"
	IntentRepeat                     = "AMAZON.RepeatIntent"
	IntentHelp                       = "AMAZON.HelpIntent"
	IntentStop                       = "AMAZON.StopIntent"
	IntentCancel                     = "AMAZON.CancelIntent"
)

// Slot names.
const (
	SlotCityName   = "cityName"
	SlotStopNumber = "stopNumber"
)

// Turn is one inbound request from the voice platform.
type Turn struct {
	ID         string            `json:"id,omitempty"`
	Kind       TurnKind          `json:"kind"`
	IntentName string            `json:"intentName,omitempty"`
	Slots      map[string]string `json:"slots,omitempty"`
	SessionID  string            `json:"sessionId"`
	DeviceID   string            `json:"deviceId"`
	PersonID   string            `json:"personId,omitempty"`
	Session    *Session          `json:"sessionAttributes,omitempty"`
}

// Slot returns a trimmed slot value.
func (t Turn) Slot(name string) string {
	return strings.TrimSpace(t.Slots[name])
}

// Reply is the outbound answer for one turn.
type Reply struct {
	SpeechText       string   `json:"speechText"`
	RepromptText     string   `json:"repromptText,omitempty"`
	ShouldEndSession bool     `json:"shouldEndSession"`
	Session          *Session `json:"sessionAttributes,omitempty"`
}

// Ask builds a reply that keeps the session open.
func Ask(speech, reprompt string) Reply {
	if reprompt == "" {
		reprompt = speech
	}
	return Reply{SpeechText: speech, RepromptText: reprompt}
}

// Tell builds a reply that ends the session.
func Tell(speech string) Reply {
	return Reply{SpeechText: speech, ShouldEndSession: true}
}
