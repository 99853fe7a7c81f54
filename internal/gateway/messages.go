package gateway

import (
	"fmt"
	"time"
)

const (
	greetingText = "Hello! I'm your AI assistant for the Asset Management System database. " +
		"I can help you find information about assets, users, maintenance records, and more. " +
		"Just ask me a question in plain English, and I'll query the database for you. " +
		"Type 'help' if you'd like to see examples of what I can do!"

	helpText = `I'm here to help you query the Asset Management System database. Here's what I can do:

**Data Queries:**
- "Show me all assets"
- "List users and their assigned assets"
- "Find laptops that are available"
- "Show maintenance records for asset TAG123"
- "Count assets by category"

**Schema Information:**
- "What tables are in the database?"
- "Describe the assets table"
- "Show me the database structure"

**Examples of what you can ask:**
- "How many assets do we have?"
- "Who has the most assets assigned?"
- "What maintenance was done last month?"
- "Show me all Dell computers"
- "Find assets purchased after 2023"

Just ask your question in natural language, and I'll generate and execute the appropriate SQL query for you!`

	unrecognizedText = "I'm sorry, I didn't understand your request. Could you please rephrase it? " +
		"I can help you query the asset management database, provide schema information, or answer questions about the data."

	clarificationText = "I couldn't generate a SQL query from your request. Could you please be more specific? " +
		"For example: 'Show me all laptops' or 'List users with their assigned assets'"

	executionFailedText = "I generated a query but there was an error executing it: "
	rejectedText        = "I generated a query but it did not pass the safety checks: "
	schemaFailedText    = "I couldn't read the database structure right now. Please try again later."
	unexpectedText      = "I encountered an error while processing your request. Please try again."
)

type Help struct {
	Description         string   `json:"description"`
	Capabilities        []string `json:"capabilities"`
	ExampleQueries      []string `json:"exampleQueries"`
	SupportedOperations []string `json:"supportedOperations"`
	Limitations         []string `json:"limitations"`
}

// HelpInfo describes the chat surface for a gateway with the given query
// timeout.
func HelpInfo(queryTimeout time.Duration) Help {
	return Help{
		Description: "Natural-language database assistant for the Asset Management System",
		Capabilities: []string{
			"Natural language database queries",
			"Schema information retrieval",
			"Data analysis and reporting",
			"Asset information lookup",
			"User and assignment queries",
			"Maintenance record searches",
			"Statistical analysis",
		},
		ExampleQueries: []string{
			"Show me all laptops",
			"How many assets do we have?",
			"List users with their assigned assets",
			"Find assets that need maintenance",
			"Show me Dell computers purchased this year",
			"What is the total value of our assets?",
			"What maintenance was done last month?",
		},
		SupportedOperations: []string{
			"SELECT queries only (read-only)",
			"JOIN operations across related tables",
			"Filtering by various criteria",
			"Aggregation functions (COUNT, SUM, AVG)",
			"Date range queries",
			"Pattern matching searches",
		},
		Limitations: []string{
			"No data modification operations (INSERT, UPDATE, DELETE)",
			"Limited to AMS database tables only",
			fmt.Sprintf("Query timeout of %s", queryTimeout),
			"Results limited to prevent excessive data transfer",
			"Advanced SQL features may not be supported",
		},
	}
}
