package digest

const (
	MonthlyReportDirective = "Based on the following information, provide a concise summary (max 15 sentences) of the current state for non technical people and focus of the following DAO. Provide, if possible, a list of the most important topics that are being discussed in the DAO."

	GlobalReportDirective = "Based on the following information, provide a concise summary (max 30 sentences) of the current DAO for non technical people. What is it about, why was it created, when was it created? Provide a reason why the user would want to join this DAO."

	ProposalDirective = "Provide a concise summary (max 5 sentences) of the provided proposal. Include the most important points and a summary of the proposal. Provide a reason why the user would want to vote for or against this proposal."

	FilteredProposalDirective = "Based on the following information, provide a concise summary (max 5 sentences) of the provided proposals. Include the most important points and a summary of the proposal. Give a point for each proposal."
)

const (
	insightUnavailable = "Unable to generate DAO summary at this time."
	summaryUnavailable = "Unable to load summary at this time."
	noRecentProposals  = "No proposals in the last 30 days."
	suggestionFailed   = "Request failed."
)
