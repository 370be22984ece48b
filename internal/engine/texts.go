package engine

// Fixed dialogue texts. These are part of the wire contract with existing
// clients; change them only together with the frontend.
const (
	openingQuestion = "Did you get chemotherapy today?"

	symptomPrompt = "Thank you. What symptoms are you experiencing? You can select multiple."

	declinedClosing = "Thank you for checking in. Since you didn't have chemotherapy today, " +
		"there is nothing more to record. Take care!"

	endedMessage = "This conversation has ended. Please start a new one if you need assistance."

	apologyMessage = "I'm sorry, I encountered an error. Please try again."

	summaryMessageFormat = "<b>Thank you for completing this chat!</b><br><br>" +
		"Here is your conversation summary:<br><br>%s"
)

// OpeningOptions are the answers offered with the opening question.
var OpeningOptions = []string{"Yes", "No", "I had it recently, but didn't record it"}

// SymptomVocabulary is the fixed multi-select symptom list.
var SymptomVocabulary = []string{
	"Fever", "Nausea", "Vomiting", "Diarrhea", "Constipation", "Fatigue",
	"Headache", "Mouth Sores", "Rash", "Shortness of Breath", "Other",
}
