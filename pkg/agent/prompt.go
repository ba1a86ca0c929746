package agent

// systemPrompt primes the model for spoken property search. Everything
// the model says is read aloud, so replies must stay short.
const systemPrompt = "You are a specialized assistant for searching real estates, " +
	"speaking with a caller over the phone. " +
	"Use the provided tools to capture the caller's search criteria and to search for properties. " +
	"When searching, be persistent. Expand your query bounds if the first search returns no results. " +
	"Always consider the entire conversation history. " +
	"Keep your responses concise and conversational; they are converted directly to speech."

// criteriaNotice tells the model what the session has accumulated so
// far, phrased the way the extraction step reports criteria.
func criteriaNotice(criteria string) string {
	return "The user is looking for real estates with the following search criteria: " + criteria
}
