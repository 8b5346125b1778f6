package agent

// Suggestion is a canned question offered next to the question box.
type Suggestion struct {
	Label    string `json:"label"`
	Question string `json:"question"`
}

func Suggestions() []Suggestion {
	return []Suggestion{
		{Label: "Critical devices in New York", Question: "Show me the list of critical devices in New York"},
		{Label: "Fix for Memory Leak errors", Question: "What is the standard fix for Memory Leak errors?"},
		{Label: "Overheating devices + repair steps", Question: "Find all overheating devices and summarize the recommended repair steps"},
	}
}
