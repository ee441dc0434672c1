package rag

import "fmt"

const (
	// RetrieveTopK is how many documents back a part-oriented answer.
	RetrieveTopK = 2
	// GroundingThreshold is the minimum top-hit cosine score for an answer
	// to be restricted to retrieved context.
	GroundingThreshold = 0.35
)

// IceMakerAnswer is the canned reply for a non-working Whirlpool ice maker.
const IceMakerAnswer = "Common causes include insufficient water supply, a clogged inlet valve, or ice blockage. " +
	"Check water line, ensure freezer temperature is correct, clear any ice jams, and reset the ice maker. " +
	"If issues persist, consider inspecting the inlet valve (e.g., PS11752778)."

// GeneralPrompt is used for questions that are not about a specific part.
func GeneralPrompt(message string) string {
	return "You are a helpful assistant for PartSelect customers. You can answer questions about " +
		"refrigerators and dishwashers, including parts, installation, maintenance tips, troubleshooting, " +
		"detergent recommendations, and best practices. Always answer in plain English, be concise, and " +
		"provide 2-4 actionable suggestions.\n\nUser question: " + message
}

// GroundedPrompt restricts the answer to the retrieved context.
func GroundedPrompt(context, message string) string {
	return fmt.Sprintf("You are a support assistant for PartSelect refrigerator/dishwasher parts.\n"+
		"Use ONLY the provided context to answer. If the context is insufficient, say you are not sure.\n\n"+
		"Context:\n%s\n\nQuestion: %s\nAnswer in 2-4 concise sentences.", context, message)
}

// FallbackPrompt is used for part questions with no usable context.
func FallbackPrompt(message string) string {
	return "You are a helpful assistant for PartSelect customers. You answer questions about refrigerators " +
		"and dishwashers, including parts, installation, maintenance tips, troubleshooting, and best practices. " +
		"Even if there is no specific part number or model, provide useful, practical advice in plain English " +
		"with 2-4 concise, actionable tips.\n\nUser question: " + message
}

// Replies returned to the customer when no answer could be generated.
const (
	EmptyMessageReply = "Please enter a question so I can answer!"
	FailureReply      = "Sorry, I'm having trouble answering right now. Please try again in a moment."
)
