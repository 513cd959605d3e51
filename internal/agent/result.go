package agent

// Outcome classifies what happened inside a tool, before the conversational
// phrasing is applied at the boundary.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeValidation   Outcome = "validation"
	OutcomeConflict     Outcome = "conflict"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeStoreFailure Outcome = "store_failure"
)

// toolResult is the internal return value of every tool's logic. The message
// is the conversational line spoken back to the caller; tools that hit a
// generic failure leave it empty and the boundary fills in the default.
type toolResult struct {
	outcome Outcome
	message string
}

func ok(message string) toolResult {
	return toolResult{outcome: OutcomeOK, message: message}
}

func invalid(message string) toolResult {
	return toolResult{outcome: OutcomeValidation, message: message}
}

func conflict(message string) toolResult {
	return toolResult{outcome: OutcomeConflict, message: message}
}

func notFound(message string) toolResult {
	return toolResult{outcome: OutcomeNotFound, message: message}
}

func storeFailure() toolResult {
	return toolResult{outcome: OutcomeStoreFailure}
}

// Default phrasings applied once, at the tool boundary.
const (
	msgStoreFailure = "I'm sorry, I'm having trouble with that right now. Please try again in a moment."
	msgNeedIdentify = "I need your phone number first so I can look you up."
	msgNotFound     = "I couldn't find that appointment. Could you check the details and try again?"
)

// message resolves the spoken line, substituting the default for the outcome
// when the tool didn't provide one.
func (r toolResult) resolveMessage() string {
	if r.message != "" {
		return r.message
	}
	switch r.outcome {
	case OutcomeStoreFailure:
		return msgStoreFailure
	case OutcomeNotFound:
		return msgNotFound
	default:
		return r.message
	}
}
