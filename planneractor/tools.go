package planneractor

// ToolSpec describes one tool the Planner may select, matching the
// system prompt's enumerated tool table.
type ToolSpec struct {
	Service     string
	Description string
	Parameters  []string
}

// KnownTools is the fixed tool table enumerated in the Planner's system
// prompt and used to resolve each task's service during post-validation.
// Grounded in original_source's PlannerActor.available_tools.
var KnownTools = map[string]ToolSpec{
	"rag_search": {
		Service:     "knowledge",
		Description: "Semantic search over the knowledge base",
		Parameters:  []string{"query", "top_k"},
	},
	"rag_search_multiple": {
		Service:     "knowledge",
		Description: "Search the knowledge base with several queries at once",
		Parameters:  []string{"queries", "top_k"},
	},
	"rag_ask": {
		Service:     "knowledge",
		Description: "Ask the knowledge base a question and get a synthesized answer",
		Parameters:  []string{"question", "top_k"},
	},
	"web_search": {
		Service:     "websearch",
		Description: "Search the web for information not in the knowledge base",
		Parameters:  []string{"query", "max_results"},
	},
	"web_search_summarize": {
		Service:     "websearch",
		Description: "Search the web and summarize the results",
		Parameters:  []string{"query", "max_results"},
	},
	"execute_python": {
		Service:     "sandbox",
		Description: "Run Python code in a sandbox (numpy, pandas, matplotlib available)",
		Parameters:  []string{"code", "timeout"},
	},
	"execute_bash": {
		Service:     "sandbox",
		Description: "Run a bash command in a sandbox",
		Parameters:  []string{"command"},
	},
	"git_clone":  {Service: "repoops", Description: "Clone a git repository", Parameters: []string{"url", "path", "branch"}},
	"git_status": {Service: "repoops", Description: "Show git repository status", Parameters: []string{"path"}},
	"git_commit": {Service: "repoops", Description: "Commit changes", Parameters: []string{"path", "message", "files"}},
	"git_push":   {Service: "repoops", Description: "Push changes to a remote", Parameters: []string{"path", "remote", "branch"}},
	"git_pull":   {Service: "repoops", Description: "Pull updates from a remote", Parameters: []string{"path", "remote", "branch"}},
	"git_log":    {Service: "repoops", Description: "Show commit history", Parameters: []string{"path", "limit"}},
	"git_diff":   {Service: "repoops", Description: "Show a git diff", Parameters: []string{"path", "cached"}},
	"vision_analysis": {
		Service:     "vision",
		Description: "Analyze an attached image with a vision-capable model",
		Parameters:  []string{"images", "query"},
	},
	"file_analysis": {
		Service:     "fileanalysis",
		Description: "Extract and analyze text from an attached file",
		Parameters:  []string{"files", "query"},
	},
}
