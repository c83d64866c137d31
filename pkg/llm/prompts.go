package llm

import "fmt"

const summarySystemMessage = "You are an expert senior software engineer who writes precise, plain-language summaries of source code for a searchable knowledge base."

// fileSummaryPrompt asks for a short synopsis of one repository file. The
// summary is what gets embedded, so it must stand alone without the code.
func fileSummaryPrompt(fileName, content string) string {
	return fmt.Sprintf(`You are onboarding a junior engineer onto this codebase. Explain the purpose of the file %s in no more than 100 words. Focus on what the code does and why it exists, not line-by-line detail.

Here is the code:
---
%s
---

Reply with the summary only.`, fileName, content)
}

// diffSummaryPrompt asks for a commit-log style summary of a git diff.
func diffSummaryPrompt(diff string) string {
	return fmt.Sprintf(`Your task is to summarize a git diff.

Reminders about the git diff format:
For every file, there are a few metadata lines, like:
diff --git a/lib/index.js b/lib/index.js
index aadf691..bfef603 100644
--- a/lib/index.js
+++ b/lib/index.js
This means that lib/index.js was modified in this commit. A line starting with "+" was added, a line starting with "-" was deleted, and a line starting with neither is context that is not part of the change.

Example summary comments:
- Raised the amount of returned recordings from 10 to 100 [packages/server/recordings_api.ts], [packages/server/constants.ts]
- Fixed a typo in the GitHub action name [.github/workflows/gpt-commit-summarizer.yml]
- Moved the octokit initialization to a separate file [src/octokit.ts], [src/index.ts]
- Lowered numeric tolerance for test files

Most commits need fewer comments than that. Omit file names when more than two files are relevant. Do not copy the examples into your summary.

Please summarize the following diff:

%s`, diff)
}
