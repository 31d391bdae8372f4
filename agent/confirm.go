package agent

import "strings"

// Confirmation is the classification of a voice utterance while a payment
// preview is pending.
type Confirmation int

const (
	// ConfirmationUnclear means the utterance matched neither phrase set.
	ConfirmationUnclear Confirmation = iota

	// ConfirmationConfirmed means the user approved the pending payment.
	ConfirmationConfirmed

	// ConfirmationCancelled means the user rejected the pending payment.
	ConfirmationCancelled
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationCancelled:
		return "cancelled"
	default:
		return "unclear"
	}
}

// confirmPhrases are checked before cancelPhrases: an utterance containing
// both resolves to confirmed. That precedence is deliberate and documented,
// not a guess about intent.
var confirmPhrases = []string{
	"yes", "yeah", "yep", "yup", "confirm", "confirmed",
	"do it", "send it", "go ahead", "proceed", "approve",
	"that's right", "correct", "ok", "okay", "sure",
}

var cancelPhrases = []string{
	"no", "nope", "cancel", "stop", "wait", "don't",
	"abort", "nevermind", "never mind", "hold on",
}

// Classify maps a free-text utterance to a Confirmation via substring
// containment against fixed phrase sets, first match wins. This is simple
// pattern matching, not intent understanding: it only gates an
// already-created pending preview.
func Classify(transcript string) Confirmation {
	t := strings.ToLower(strings.TrimSpace(transcript))

	for _, phrase := range confirmPhrases {
		if strings.Contains(t, phrase) {
			return ConfirmationConfirmed
		}
	}
	for _, phrase := range cancelPhrases {
		if strings.Contains(t, phrase) {
			return ConfirmationCancelled
		}
	}
	return ConfirmationUnclear
}
